package framework

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/bootstrap"
	"github.com/ripixel/fitglue-vision/pkg/execution"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

const pubsubPublishedType = "google.cloud.pubsub.topic.v1.messagePublished"

// FrameworkContext is handed to every handler.
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string
}

// HandlerFunc returns outputs for the execution log and an error that fails the invocation.
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// DegradedOutput lets a handler finish successfully while marking the
// execution as degraded rather than successful.
type DegradedOutput interface {
	DegradedCause() error
}

// WrapCloudEvent adds execution logging and Pub/Sub envelope unwrapping to a handler.
// Execution log failures are logged and never fail the function.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		logger := slog.Default().With("service", serviceName)
		e = Unwrap(e)

		execID, err := execution.LogPending(ctx, svc.DB, serviceName, execution.ExecutionOptions{
			TriggerType: "pubsub",
		})
		if err != nil {
			logger.Error("Failed to log execution pending", "error", err)
		}
		if err := execution.LogStart(ctx, svc.DB, execID, json.RawMessage(eventData(e)), nil); err != nil {
			logger.Warn("Failed to log execution start", "error", err)
		}

		logger = logger.With("execution_id", execID, "event_id", e.ID())
		logger.Info("Function started", "event_type", e.Type())

		outputs, handlerErr := handler(ctx, e, &FrameworkContext{
			Service:     svc,
			Logger:      logger,
			ExecutionID: execID,
		})

		if handlerErr != nil {
			logger.Error("Function failed", "error", handlerErr)
			if logErr := execution.LogFailure(ctx, svc.DB, execID, handlerErr, outputs); logErr != nil {
				logger.Warn("Failed to log execution failure", "error", logErr)
			}
			return handlerErr
		}

		if d, ok := outputs.(DegradedOutput); ok && d.DegradedCause() != nil {
			logger.Warn("Function completed with degraded output", "error", d.DegradedCause())
			if logErr := execution.LogDegraded(ctx, svc.DB, execID, d.DegradedCause(), outputs); logErr != nil {
				logger.Warn("Failed to log execution degraded", "error", logErr)
			}
			return nil
		}

		logger.Info("Function completed successfully")
		if logErr := execution.LogSuccess(ctx, svc.DB, execID, outputs); logErr != nil {
			logger.Warn("Failed to log execution success", "error", logErr)
		}
		return nil
	}
}

// Unwrap returns the CloudEvent carried inside a Pub/Sub envelope. Plain JSON
// payloads are re-typed as photo-uploaded events; anything else is returned as is.
func Unwrap(e event.Event) event.Event {
	if e.Type() != pubsubPublishedType {
		return e
	}
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil || len(msg.Message.Data) == 0 {
		return e
	}

	var inner event.Event
	if err := json.Unmarshal(msg.Message.Data, &inner); err == nil && inner.Type() != "" {
		return inner
	}

	wrapped := event.New()
	wrapped.SetID(e.ID())
	wrapped.SetSource(e.Source())
	wrapped.SetType(shared.EventTypePhotoUploaded)
	if !e.Time().IsZero() {
		wrapped.SetTime(e.Time())
	}
	_ = wrapped.SetData(event.ApplicationJSON, json.RawMessage(msg.Message.Data))
	for k, v := range msg.Message.Attributes {
		if validExtensionName(k) {
			wrapped.SetExtension(k, v)
		}
	}
	return wrapped
}

func eventData(e event.Event) []byte {
	if d := e.Data(); json.Valid(d) {
		return d
	}
	return []byte("null")
}

// CloudEvents extension names are lowercase alphanumerics only.
func validExtensionName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
