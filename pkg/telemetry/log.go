package telemetry

import (
	"context"
	"log/slog"
)

// LogRecorder writes each event as a structured log line.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger.With("component", "telemetry")}
}

func (l *LogRecorder) ImageProcessed(ctx context.Context, e ImageProcessed) {
	l.logger.InfoContext(ctx, "imageProcessed",
		"correlation_id", e.CorrelationID,
		"orig_size", e.OriginalSize,
		"new_size", e.NewSize,
		"reencoded", e.Reencoded,
		"ms", e.Duration.Milliseconds())
}

func (l *LogRecorder) AICallCompleted(ctx context.Context, e AICallCompleted) {
	l.logger.InfoContext(ctx, "aiCallCompleted",
		"correlation_id", e.CorrelationID,
		"domain", e.Domain,
		"backend", e.Backend,
		"response_len", e.ResponseLen,
		"attempts", e.Attempts,
		"ms", e.Duration.Milliseconds())
}

func (l *LogRecorder) ExtractionSucceeded(ctx context.Context, e ExtractionSucceeded) {
	attrs := []any{
		"correlation_id", e.CorrelationID,
		"domain", e.Domain,
		"ms", e.Duration.Milliseconds(),
	}
	if e.Metadata != nil {
		attrs = append(attrs, "confidence", e.Metadata.Confidence(), "metadata", e.Metadata)
	}
	l.logger.InfoContext(ctx, "extractionSucceeded", attrs...)
}

func (l *LogRecorder) ExtractionFailed(ctx context.Context, e ExtractionFailed) {
	l.logger.WarnContext(ctx, "extractionFailed",
		"correlation_id", e.CorrelationID,
		"domain", e.Domain,
		"error_kind", e.Kind,
		"error_message", e.Message,
		"fallback", e.Fallback,
		"ms", e.Duration.Milliseconds())
}
