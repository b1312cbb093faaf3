package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

type countingRecorder struct {
	Nop
	succeeded int
	failed    int
}

func (c *countingRecorder) ExtractionSucceeded(context.Context, ExtractionSucceeded) { c.succeeded++ }
func (c *countingRecorder) ExtractionFailed(context.Context, ExtractionFailed)       { c.failed++ }

type panickingRecorder struct{ Nop }

func (panickingRecorder) ExtractionSucceeded(context.Context, ExtractionSucceeded) {
	panic("sink exploded")
}

func TestSafe_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := Safe(panickingRecorder{}, logger)
	r.ExtractionSucceeded(context.Background(), ExtractionSucceeded{Domain: metadata.DomainExercise})

	if !strings.Contains(buf.String(), "telemetry recorder panicked") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestMulti(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	m := Multi{a, b}
	m.ExtractionSucceeded(context.Background(), ExtractionSucceeded{})
	m.ExtractionFailed(context.Background(), ExtractionFailed{})
	if a.succeeded != 1 || b.succeeded != 1 || a.failed != 1 || b.failed != 1 {
		t.Errorf("events not fanned out: a=%+v b=%+v", a, b)
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	r.ExtractionFailed(context.Background(), ExtractionFailed{
		CorrelationID: "corr-1",
		Domain:        metadata.DomainDiet,
		Kind:          apperrors.KindAIService,
		Message:       "retries exhausted",
		Fallback:      true,
		Duration:      1500 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{`"msg":"extractionFailed"`, `"error_kind":"ai_service"`, `"correlation_id":"corr-1"`, `"ms":1500`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestPrometheusRecorder(t *testing.T) {
	p := NewPrometheusRecorder()
	ctx := context.Background()

	rec := metadata.NewExercise(time.Now())
	rec.SetConfidence(0.9)
	p.ExtractionSucceeded(ctx, ExtractionSucceeded{Domain: metadata.DomainExercise, Duration: time.Second, Metadata: rec})
	p.ExtractionFailed(ctx, ExtractionFailed{Domain: metadata.DomainDiet, Kind: apperrors.KindParsing, Fallback: true})
	p.ImageProcessed(ctx, ImageProcessed{OriginalSize: 3 << 20, NewSize: 400 << 10})
	p.ObserveAttempt("gemini", 1, 200*time.Millisecond, ai.EmptyResponse("gemini", ai.TerminationSafety, "blocked"))
	p.ObserveAttempt("gemini", 2, 300*time.Millisecond, nil)
	p.ObserveAttempt("gemini", 3, time.Millisecond, errors.New("boom"))

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`vision_extractions_total{domain="exercise",kind="none",outcome="success"} 1`,
		`vision_extractions_total{domain="diet",kind="parsing",outcome="fallback"} 1`,
		`vision_ai_attempts_total{attempt="1",backend="gemini",class="empty_response"} 1`,
		`vision_ai_attempts_total{attempt="2",backend="gemini",class="ok"} 1`,
		`vision_ai_attempts_total{attempt="3",backend="gemini",class="unknown"} 1`,
		`vision_image_bytes_count{stage="processed"} 1`,
		`vision_confidence_score_count{domain="exercise"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
