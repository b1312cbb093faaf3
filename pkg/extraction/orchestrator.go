// Package extraction runs one photo through preprocessing, prompting, the AI
// call and parsing, and always hands back a well-formed record.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
	"github.com/ripixel/fitglue-vision/pkg/fallback"
	"github.com/ripixel/fitglue-vision/pkg/imaging"
	"github.com/ripixel/fitglue-vision/pkg/parser"
	"github.com/ripixel/fitglue-vision/pkg/prompt"
	"github.com/ripixel/fitglue-vision/pkg/telemetry"
)

// ImageProcessor is satisfied by *imaging.Preprocessor.
type ImageProcessor interface {
	Process(ctx context.Context, ref string) (*imaging.ProcessedImage, error)
}

// AIClient is satisfied by *ai.Client.
type AIClient interface {
	Generate(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error)
}

type ResponseParser interface {
	Parse(text string, d metadata.Domain) parser.Outcome
}

type Synthesizer interface {
	Synthesize(raw string, d metadata.Domain) metadata.Record
}

// Orchestrator is safe for concurrent use; the only shared state is inside the AI client.
type Orchestrator struct {
	images   ImageProcessor
	client   AIClient
	composer prompt.Composer
	parser   ResponseParser
	fallback Synthesizer
	recorder telemetry.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithComposer(c prompt.Composer) Option {
	return func(o *Orchestrator) { o.composer = c }
}

func WithParser(p ResponseParser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

func WithSynthesizer(s Synthesizer) Option {
	return func(o *Orchestrator) { o.fallback = s }
}

func WithRecorder(r telemetry.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(images ImageProcessor, client AIClient, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		images:   images,
		client:   client,
		composer: prompt.Default,
		parser:   parser.New(logger),
		fallback: fallback.New(logger),
		recorder: telemetry.Nop{},
		logger:   logger.With("component", "orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.recorder = telemetry.Safe(o.recorder, logger)
	return o
}

// ExtractExerciseMetadata never fails; inspect Result.Failure for degradation.
func (o *Orchestrator) ExtractExerciseMetadata(ctx context.Context, imageRef, correlationID string) *Result {
	return o.Extract(ctx, Request{ImageRef: imageRef, Domain: metadata.DomainExercise, CorrelationID: correlationID})
}

// ExtractDietMetadata never fails; inspect Result.Failure for degradation.
func (o *Orchestrator) ExtractDietMetadata(ctx context.Context, imageRef, correlationID string) *Result {
	return o.Extract(ctx, Request{ImageRef: imageRef, Domain: metadata.DomainDiet, CorrelationID: correlationID})
}

// Extract runs the pipeline for req. Expected failures are absorbed into a
// degraded Result; a panic anywhere below is recovered the same way.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (res *Result) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	if req.Domain != metadata.DomainDiet {
		req.Domain = metadata.DomainExercise
	}

	r := &run{
		o:      o,
		req:    req,
		start:  o.now(),
		logger: o.logger.With("correlation_id", req.CorrelationID, "domain", req.Domain),
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("extraction panicked", "panic", fmt.Sprint(p), "state", r.state)
			res = r.degrade(ctx, apperrors.ErrUnknown.WithCause(fmt.Errorf("panic: %v", p)), nil)
		}
	}()

	return r.execute(ctx)
}

// run holds the state of a single Extract call.
type run struct {
	o      *Orchestrator
	req    Request
	start  time.Time
	mark   time.Time
	state  State
	logger *slog.Logger

	attempts int
	strategy string
}

func (r *run) enter(s State) {
	now := r.o.now()
	if r.state != "" {
		r.logger.Debug("extraction state change", "from", r.state, "to", s, "stage_ms", now.Sub(r.mark).Milliseconds())
	}
	r.state, r.mark = s, now
}

func (r *run) execute(ctx context.Context) *Result {
	o := r.o

	// 1. Preprocess
	r.enter(StatePreprocessing)
	imgStart := o.now()
	img, err := o.images.Process(ctx, r.req.ImageRef)
	if err != nil {
		failure := apperrors.Normalize(err)
		if failure.Kind == apperrors.KindUnknown {
			failure = apperrors.Wrap(err, apperrors.KindImageProcessing, "image preprocessing failed")
		}
		if errors.Is(err, apperrors.ErrUnsupportedLocator) {
			failure = failure.WithMetadata(MetadataContractViolation, "true")
		}
		r.logger.Warn("image preprocessing failed", "error", failure, "image_ref", r.req.ImageRef)
		return r.degrade(ctx, failure, nil)
	}
	o.recorder.ImageProcessed(ctx, telemetry.ImageProcessed{
		CorrelationID: r.req.CorrelationID,
		OriginalSize:  img.OriginalSize,
		NewSize:       img.ByteSize,
		Reencoded:     img.Reencoded,
		Duration:      o.now().Sub(imgStart),
	})

	// 2. Prompt
	r.enter(StatePrompting)
	parts := []ai.Part{
		ai.TextPart(o.composer.ForDomain(r.req.Domain)),
		ai.ImagePart(img.MediaType, img.Data),
	}

	// 3. Call
	r.enter(StateCalling)
	callStart := o.now()
	resp, err := o.client.Generate(ctx, parts, ai.ExtractionSampling)
	if err != nil {
		failure := apperrors.Normalize(err)
		if failure.Kind == apperrors.KindUnknown {
			failure = apperrors.Wrap(err, apperrors.KindAIService, "ai call failed")
		}
		r.attempts = failure.RetryCount
		r.logger.Warn("AI call failed", "error", failure, "attempts", failure.RetryCount)
		return r.degrade(ctx, failure, ptr(""))
	}
	r.attempts = resp.Attempts
	o.recorder.AICallCompleted(ctx, telemetry.AICallCompleted{
		CorrelationID: r.req.CorrelationID,
		Domain:        r.req.Domain,
		Backend:       backendOf(o.client),
		ResponseLen:   len(resp.Text),
		Attempts:      resp.Attempts,
		Duration:      o.now().Sub(callStart),
	})

	// 4. Parse
	r.enter(StateParsing)
	outcome := o.parser.Parse(resp.Text, r.req.Domain)
	r.strategy = outcome.Strategy
	if !outcome.Structured() {
		failure := apperrors.ErrNoStructuredData.WithMetadata("response_len", fmt.Sprint(len(resp.Text)))
		if outcome.Strategy != "" {
			failure = failure.WithMessage("structured data had no valid fields").WithMetadata("strategy", outcome.Strategy)
		}
		r.logger.Warn("model response could not be parsed", "error", failure, "termination_reason", resp.TerminationReason)
		return r.degrade(ctx, failure, &resp.Text)
	}

	r.enter(StateDone)
	elapsed := o.now().Sub(r.start)
	o.recorder.ExtractionSucceeded(ctx, telemetry.ExtractionSucceeded{
		CorrelationID: r.req.CorrelationID,
		Domain:        r.req.Domain,
		Duration:      elapsed,
		Metadata:      outcome.Record,
	})
	r.logger.Info("extraction succeeded",
		"confidence", outcome.Confidence,
		"strategy", outcome.Strategy,
		"attempts", r.attempts,
		"duration_ms", elapsed.Milliseconds())

	return r.result(outcome.Record, nil, false, elapsed)
}

// degrade finishes a failed run. With raw text available (even empty) the
// fallback synthesizer produces the record; otherwise it is all-null.
func (r *run) degrade(ctx context.Context, failure *apperrors.ExtractionError, raw *string) *Result {
	o := r.o
	var rec metadata.Record
	usedFallback := false
	if raw != nil {
		r.enter(StateFallbackSynthesizing)
		rec = o.fallback.Synthesize(*raw, r.req.Domain)
		usedFallback = true
	}
	if rec == nil {
		rec = metadata.NewEmpty(r.req.Domain, o.now().UTC())
	}

	r.enter(StateDone)
	elapsed := o.now().Sub(r.start)
	o.recorder.ExtractionFailed(ctx, telemetry.ExtractionFailed{
		CorrelationID: r.req.CorrelationID,
		Domain:        r.req.Domain,
		Kind:          failure.Kind,
		Message:       failure.Error(),
		Fallback:      usedFallback,
		Duration:      elapsed,
	})
	return r.result(rec, failure, usedFallback, elapsed)
}

func (r *run) result(rec metadata.Record, failure *apperrors.ExtractionError, usedFallback bool, elapsed time.Duration) *Result {
	return &Result{
		CorrelationID: r.req.CorrelationID,
		Domain:        r.req.Domain,
		Record:        rec,
		Failure:       failure,
		Fallback:      usedFallback,
		Strategy:      r.strategy,
		Attempts:      r.attempts,
		Duration:      elapsed,
	}
}

func backendOf(c AIClient) string {
	if b, ok := c.(interface{ Backend() string }); ok {
		return b.Backend()
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
