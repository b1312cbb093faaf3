package notifications

import (
	"context"
	"fmt"
	"log/slog"

	shared "github.com/ripixel/fitglue-vision/pkg"
	infrapubsub "github.com/ripixel/fitglue-vision/pkg/infrastructure/pubsub"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

// PubSubNotifier announces finished analyses on a topic. Device delivery is
// handled by whoever subscribes.
type PubSubNotifier struct {
	pub    shared.Publisher
	topic  string
	logger *slog.Logger
}

func NewPubSubNotifier(pub shared.Publisher, topic string, logger *slog.Logger) *PubSubNotifier {
	if topic == "" {
		topic = shared.TopicAnalysisReady
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubNotifier{pub: pub, topic: topic, logger: logger.With("component", "notifications")}
}

func (n *PubSubNotifier) NotifyAnalysisReady(ctx context.Context, note types.AnalysisNotification) error {
	e, err := infrapubsub.NewCloudEvent(shared.EventSourceExtractor, shared.EventTypeAnalysisReady, note)
	if err != nil {
		return fmt.Errorf("build analysis-ready event: %w", err)
	}
	if note.PhotoID != "" {
		e.SetSubject(note.PhotoID)
	}
	msgID, err := n.pub.PublishCloudEvent(ctx, n.topic, e)
	if err != nil {
		return fmt.Errorf("publish analysis-ready for photo %s: %w", note.PhotoID, err)
	}
	n.logger.Info("Analysis-ready notification published",
		"photo_id", note.PhotoID,
		"status", note.Status,
		"message_id", msgID)
	return nil
}
