package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
	"github.com/ripixel/fitglue-vision/pkg/fallback"
	"github.com/ripixel/fitglue-vision/pkg/imaging"
	"github.com/ripixel/fitglue-vision/pkg/parser"
	"github.com/ripixel/fitglue-vision/pkg/telemetry"
	"github.com/ripixel/fitglue-vision/pkg/testing/mocks"
)

const photoRef = "gs://fitglue-photos/users/u1/photo-1.png"

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		img.Set(x, x%48, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type recordingRecorder struct {
	mu        sync.Mutex
	images    int
	aiCalls   []telemetry.AICallCompleted
	succeeded []telemetry.ExtractionSucceeded
	failed    []telemetry.ExtractionFailed
}

func (r *recordingRecorder) ImageProcessed(context.Context, telemetry.ImageProcessed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images++
}

func (r *recordingRecorder) AICallCompleted(_ context.Context, e telemetry.AICallCompleted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aiCalls = append(r.aiCalls, e)
}

func (r *recordingRecorder) ExtractionSucceeded(_ context.Context, e telemetry.ExtractionSucceeded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, e)
}

func (r *recordingRecorder) ExtractionFailed(_ context.Context, e telemetry.ExtractionFailed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, e)
}

type fixture struct {
	store    *mocks.MockBlobStore
	gen      *mocks.MockGenerator
	recorder *recordingRecorder
	orch     *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	pngData := testPNG(t)
	f := &fixture{
		store: &mocks.MockBlobStore{
			ReadFunc: func(ctx context.Context, bucket, object string) ([]byte, error) {
				if bucket != "fitglue-photos" {
					return nil, fmt.Errorf("bucket %s: %w", bucket, shared.ErrNotFound)
				}
				return pngData, nil
			},
		},
		gen:      &mocks.MockGenerator{},
		recorder: &recordingRecorder{},
	}

	client := ai.NewClient(f.gen, ai.ClientOptions{
		MaxConcurrent: 2,
		MaxRetries:    2,
		BaseBackoff:   time.Millisecond,
		Timeout:       time.Second,
	}, nil)
	pre := imaging.NewPreprocessor(f.store, imaging.DefaultOptions(), nil)

	opts = append([]Option{WithRecorder(f.recorder)}, opts...)
	f.orch = NewOrchestrator(pre, client, nil, opts...)
	return f
}

func (f *fixture) respond(text string) {
	f.gen.GenerateFunc = func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
		return &ai.Response{Text: text, TerminationReason: ai.TerminationStop}, nil
	}
}

func TestExtractExerciseMetadata_Success(t *testing.T) {
	f := newFixture(t)
	f.respond(`{"exerciseType":"러닝","duration":30,"timePeriod":"오전","intensity":"보통"}`)

	res := f.orch.ExtractExerciseMetadata(context.Background(), photoRef, "corr-1")

	if res.Degraded() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	m := res.Exercise()
	if m == nil {
		t.Fatalf("record type = %T", res.Record)
	}
	if m.ExerciseType == nil || *m.ExerciseType != "러닝" || m.DurationMinutes == nil || *m.DurationMinutes != 30 {
		t.Errorf("unexpected metadata: %+v", m)
	}
	if m.ConfidenceScore <= 0.8 {
		t.Errorf("confidence = %v", m.ConfidenceScore)
	}
	if res.CorrelationID != "corr-1" || res.Attempts != 1 || res.Fallback {
		t.Errorf("unexpected result: %+v", res)
	}

	calls := f.gen.Calls()
	if len(calls) != 1 || len(calls[0]) != 2 {
		t.Fatalf("calls = %d", len(calls))
	}
	if !strings.Contains(calls[0][0].Text, "exerciseType") {
		t.Errorf("first part should be the exercise prompt")
	}
	if img := calls[0][1].InlineData; img == nil || img.MediaType != imaging.OutputMediaType || len(img.Data) == 0 {
		t.Errorf("second part should be the processed image, got %+v", calls[0][1])
	}

	if f.recorder.images != 1 || len(f.recorder.aiCalls) != 1 || len(f.recorder.succeeded) != 1 || len(f.recorder.failed) != 0 {
		t.Errorf("telemetry = images:%d ai:%d ok:%d failed:%d",
			f.recorder.images, len(f.recorder.aiCalls), len(f.recorder.succeeded), len(f.recorder.failed))
	}
	if f.recorder.aiCalls[0].ResponseLen == 0 || f.recorder.aiCalls[0].Backend != "mock" {
		t.Errorf("aiCallCompleted = %+v", f.recorder.aiCalls[0])
	}
}

func TestExtractDietMetadata_Success(t *testing.T) {
	f := newFixture(t)
	f.respond("```json\n{\"foodName\":\"비빔밥\",\"mainIngredients\":[\"밥\",\"나물\",\"계란\"],\"estimatedCalories\":600}\n```")

	res := f.orch.ExtractDietMetadata(context.Background(), photoRef, "")
	if res.Degraded() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	m := res.Diet()
	if m == nil || m.FoodName == nil || *m.FoodName != "비빔밥" {
		t.Fatalf("unexpected metadata: %+v", res.Record)
	}
	if len(m.MainIngredients) != 2 {
		t.Errorf("ingredients = %v", m.MainIngredients)
	}
	if res.CorrelationID == "" {
		t.Error("correlation id should be generated")
	}
	if !strings.Contains(f.gen.Calls()[0][0].Text, "foodName") {
		t.Error("diet prompt not used")
	}
}

func TestExtract_ImageFailures(t *testing.T) {
	tests := []struct {
		name         string
		ref          string
		wantContract bool
		wantSentinel *apperrors.ExtractionError
	}{
		{"malformed locator", "not a locator at all", true, apperrors.ErrUnsupportedLocator},
		{"missing object", "gs://other-bucket/missing.png", false, apperrors.ErrImageNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res := f.orch.ExtractExerciseMetadata(context.Background(), tt.ref, "corr-x")

			if res.Failure == nil || res.Failure.Kind != apperrors.KindImageProcessing {
				t.Fatalf("failure = %v, want image_processing", res.Failure)
			}
			if !errors.Is(res.Failure, tt.wantSentinel) {
				t.Errorf("failure %v is not %v", res.Failure, tt.wantSentinel)
			}
			if res.ContractViolation() != tt.wantContract {
				t.Errorf("contract violation = %v, want %v", res.ContractViolation(), tt.wantContract)
			}
			if res.Record == nil || !res.Record.Empty() || res.Record.Confidence() != 0 {
				t.Errorf("expected all-null record, got %+v", res.Record)
			}
			if res.Fallback {
				t.Error("image failures should not synthesize")
			}
			if len(f.gen.Calls()) != 0 {
				t.Error("AI should not be called")
			}
			if len(f.recorder.failed) != 1 || f.recorder.failed[0].Kind != apperrors.KindImageProcessing {
				t.Errorf("extractionFailed = %+v", f.recorder.failed)
			}
		})
	}
}

func TestExtract_AIExhaustedFallsBack(t *testing.T) {
	f := newFixture(t)
	f.gen.GenerateFunc = func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
		return nil, &ai.TransportError{Class: ai.ClassUnavailable, Backend: "mock", Message: "503"}
	}

	res := f.orch.ExtractExerciseMetadata(context.Background(), photoRef, "corr-2")

	if res.Failure == nil || res.Failure.Kind != apperrors.KindAIService {
		t.Fatalf("failure = %v, want ai_service", res.Failure)
	}
	if !errors.Is(res.Failure, apperrors.ErrAIRetriesExhausted) {
		t.Errorf("failure = %v", res.Failure)
	}
	if res.Attempts != 2 || len(f.gen.Calls()) != 2 {
		t.Errorf("attempts = %d calls = %d", res.Attempts, len(f.gen.Calls()))
	}
	if !res.Fallback || res.Record.Confidence() != fallback.Confidence {
		t.Errorf("expected fallback record, got %+v", res.Record)
	}
	if res.ContractViolation() {
		t.Error("AI failures are not contract violations")
	}
}

func TestExtract_UnparseableResponse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantType *string
		wantDur  *int
	}{
		{"no json no keywords", "I cannot describe this image.", nil, nil},
		{"keywords only", "사진은 러닝 기록으로 보이며 총 42분입니다", strp("러닝"), intp(42)},
		{"json with only invalid fields", `{"duration": 9999, "timePeriod": "late"}`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.respond(tt.text)

			res := f.orch.ExtractExerciseMetadata(context.Background(), photoRef, "corr-3")

			if res.Failure == nil || res.Failure.Kind != apperrors.KindParsing {
				t.Fatalf("failure = %v, want parsing", res.Failure)
			}
			if !res.Fallback {
				t.Error("expected fallback")
			}
			m := res.Exercise()
			if m.ConfidenceScore != fallback.Confidence {
				t.Errorf("confidence = %v", m.ConfidenceScore)
			}
			if (m.ExerciseType == nil) != (tt.wantType == nil) || (m.ExerciseType != nil && *m.ExerciseType != *tt.wantType) {
				t.Errorf("exerciseType = %v", m.ExerciseType)
			}
			if (m.DurationMinutes == nil) != (tt.wantDur == nil) || (m.DurationMinutes != nil && *m.DurationMinutes != *tt.wantDur) {
				t.Errorf("duration = %v", m.DurationMinutes)
			}
			if len(f.recorder.failed) != 1 || !f.recorder.failed[0].Fallback {
				t.Errorf("extractionFailed = %+v", f.recorder.failed)
			}
		})
	}
}

type panickingRecorder struct{ telemetry.Nop }

func (panickingRecorder) ExtractionSucceeded(context.Context, telemetry.ExtractionSucceeded) {
	panic("metrics backend down")
}

func TestExtract_TelemetryFailureIgnored(t *testing.T) {
	f := newFixture(t, WithRecorder(panickingRecorder{}))
	f.respond(`{"exerciseType":"요가","duration":60}`)

	res := f.orch.ExtractExerciseMetadata(context.Background(), photoRef, "corr-4")
	if res.Degraded() {
		t.Fatalf("telemetry panic leaked into result: %v", res.Failure)
	}
	if m := res.Exercise(); m.ExerciseType == nil || *m.ExerciseType != "요가" {
		t.Errorf("unexpected metadata: %+v", m)
	}
}

type panickingParser struct{}

func (panickingParser) Parse(string, metadata.Domain) parser.Outcome { panic("bad parser") }

func TestExtract_PanicRecovered(t *testing.T) {
	f := newFixture(t, WithParser(panickingParser{}))
	f.respond(`{"exerciseType":"요가"}`)

	res := f.orch.ExtractExerciseMetadata(context.Background(), photoRef, "corr-5")
	if res.Failure == nil || res.Failure.Kind != apperrors.KindUnknown {
		t.Fatalf("failure = %v, want unknown", res.Failure)
	}
	if res.Record == nil || !res.Record.Empty() {
		t.Errorf("record = %+v", res.Record)
	}
}

func TestExtract_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.respond(`{"exerciseType":"수영","duration":40}`)

	var wg sync.WaitGroup
	results := make([]*Result, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.orch.ExtractExerciseMetadata(context.Background(), photoRef, fmt.Sprintf("corr-%d", i))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.Degraded() || res.CorrelationID != fmt.Sprintf("corr-%d", i) {
			t.Errorf("result %d = %+v", i, res)
		}
	}
}

func intp(v int) *int       { return &v }
func strp(s string) *string { return &s }
