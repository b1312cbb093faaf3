package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/cloudevents/sdk-go/v2/event"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub
type PubSubAdapter struct {
	Client *pubsub.Client
	Logger *slog.Logger
}

func (a *PubSubAdapter) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	logger := loggerOr(a.Logger)
	bytes, err := json.Marshal(e)
	if err != nil {
		logger.Error("Failed to marshal CloudEvent", "topic", topicID, "error", err)
		return "", err
	}
	logger.Info("Publishing CloudEvent",
		"topic", topicID,
		"event_type", e.Type(),
		"event_id", e.ID(),
		"source", e.Source(),
		"size_bytes", len(bytes))

	res := a.Client.Topic(topicID).Publish(ctx, &pubsub.Message{
		Data:       bytes,
		Attributes: map[string]string{"ce-type": e.Type()},
	})
	msgID, err := res.Get(ctx)
	if err != nil {
		logger.Error("Failed to publish message", "topic", topicID, "error", err)
		return "", err
	}
	logger.Info("Message published successfully", "topic", topicID, "message_id", msgID)
	return msgID, nil
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	bytes, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	loggerOr(p.Logger).Info("MOCK PUBLISH", "topic", topicID, "event_type", e.Type(), "data", string(bytes))
	return "mock-msg-id", nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
