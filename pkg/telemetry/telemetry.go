// Package telemetry carries the per-extraction events emitted by the
// orchestrator to logs and metrics.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

type ImageProcessed struct {
	CorrelationID string
	OriginalSize  int
	NewSize       int
	Reencoded     bool
	Duration      time.Duration
}

type AICallCompleted struct {
	CorrelationID string
	Domain        metadata.Domain
	Backend       string
	ResponseLen   int
	Attempts      int
	Duration      time.Duration
}

type ExtractionSucceeded struct {
	CorrelationID string
	Domain        metadata.Domain
	Duration      time.Duration
	Metadata      metadata.Record
}

type ExtractionFailed struct {
	CorrelationID string
	Domain        metadata.Domain
	Kind          apperrors.Kind
	Message       string
	// Fallback is set when a synthesized record was returned instead of an empty one.
	Fallback bool
	Duration time.Duration
}

// Recorder receives extraction events. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	ImageProcessed(ctx context.Context, e ImageProcessed)
	AICallCompleted(ctx context.Context, e AICallCompleted)
	ExtractionSucceeded(ctx context.Context, e ExtractionSucceeded)
	ExtractionFailed(ctx context.Context, e ExtractionFailed)
}

// Nop discards every event.
type Nop struct{}

func (Nop) ImageProcessed(context.Context, ImageProcessed)           {}
func (Nop) AICallCompleted(context.Context, AICallCompleted)         {}
func (Nop) ExtractionSucceeded(context.Context, ExtractionSucceeded) {}
func (Nop) ExtractionFailed(context.Context, ExtractionFailed)       {}

// Multi fans events out to several recorders in order.
type Multi []Recorder

func (m Multi) ImageProcessed(ctx context.Context, e ImageProcessed) {
	for _, r := range m {
		r.ImageProcessed(ctx, e)
	}
}

func (m Multi) AICallCompleted(ctx context.Context, e AICallCompleted) {
	for _, r := range m {
		r.AICallCompleted(ctx, e)
	}
}

func (m Multi) ExtractionSucceeded(ctx context.Context, e ExtractionSucceeded) {
	for _, r := range m {
		r.ExtractionSucceeded(ctx, e)
	}
}

func (m Multi) ExtractionFailed(ctx context.Context, e ExtractionFailed) {
	for _, r := range m {
		r.ExtractionFailed(ctx, e)
	}
}

// Safe wraps a recorder so a panicking sink is logged and otherwise ignored.
func Safe(r Recorder, logger *slog.Logger) Recorder {
	if r == nil {
		r = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &safeRecorder{next: r, logger: logger.With("component", "telemetry")}
}

type safeRecorder struct {
	next   Recorder
	logger *slog.Logger
}

func (s *safeRecorder) guard(event string) {
	if r := recover(); r != nil {
		s.logger.Warn("telemetry recorder panicked", "event", event, "panic", fmt.Sprint(r))
	}
}

func (s *safeRecorder) ImageProcessed(ctx context.Context, e ImageProcessed) {
	defer s.guard("imageProcessed")
	s.next.ImageProcessed(ctx, e)
}

func (s *safeRecorder) AICallCompleted(ctx context.Context, e AICallCompleted) {
	defer s.guard("aiCallCompleted")
	s.next.AICallCompleted(ctx, e)
}

func (s *safeRecorder) ExtractionSucceeded(ctx context.Context, e ExtractionSucceeded) {
	defer s.guard("extractionSucceeded")
	s.next.ExtractionSucceeded(ctx, e)
}

func (s *safeRecorder) ExtractionFailed(ctx context.Context, e ExtractionFailed) {
	defer s.guard("extractionFailed")
	s.next.ExtractionFailed(ctx, e)
}
