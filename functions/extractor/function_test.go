package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/bootstrap"
	"github.com/ripixel/fitglue-vision/pkg/testing/mocks"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

type fixture struct {
	mu       sync.Mutex
	updates  map[string]map[string]interface{}
	notes    []types.AnalysisNotification
	statuses []types.ExecutionStatus
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// setup injects a service built from mocks and the real extraction pipeline.
func setup(t *testing.T, gen *mocks.MockGenerator) *fixture {
	t.Helper()
	f := &fixture{updates: map[string]map[string]interface{}{}}
	img := pngBytes(t)

	db := &mocks.MockDatabase{
		SetExecutionFunc: func(ctx context.Context, record *types.ExecutionRecord) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.statuses = append(f.statuses, record.Status)
			return nil
		},
		UpdateExecutionFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			if s, ok := data["status"].(int32); ok {
				f.statuses = append(f.statuses, types.ExecutionStatus(s))
			}
			return nil
		},
		GetPhotoFunc: func(ctx context.Context, id string) (*types.PhotoRecord, error) {
			return &types.PhotoRecord{PhotoId: id, UserId: "user-from-db", ImageRef: "gs://fitglue-photos/u/db.png", Domain: "diet"}, nil
		},
		UpdatePhotoFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.updates[id] = data
			return nil
		},
	}
	store := &mocks.MockBlobStore{
		ReadFunc: func(ctx context.Context, bucket, object string) ([]byte, error) {
			if bucket != shared.DefaultImageBucket {
				return nil, shared.ErrNotFound
			}
			return img, nil
		},
	}
	notifier := &mocks.MockNotificationService{
		NotifyAnalysisReadyFunc: func(ctx context.Context, n types.AnalysisNotification) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.notes = append(f.notes, n)
			return nil
		},
	}

	cfg := bootstrap.DefaultConfig()
	cfg.AI.RequestSpacing = 0
	cfg.AI.MaxRetries = 1
	cfg.AI.BaseBackoff = 1

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc = &bootstrap.Service{
		DB:            db,
		Store:         store,
		Notifications: notifier,
		Config:        cfg,
		Pipeline:      bootstrap.NewPipeline(cfg, store, gen, logger),
	}
	t.Cleanup(func() { svc = nil })
	return f
}

func exerciseGenerator() *mocks.MockGenerator {
	return &mocks.MockGenerator{
		GenerateFunc: func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
			return &ai.Response{
				Text:              "```json\n{\"exerciseType\":\"러닝\",\"durationMinutes\":30,\"timePeriod\":\"오전\",\"intensity\":\"보통\"}\n```",
				TerminationReason: ai.TerminationStop,
			}, nil
		},
	}
}

func photoEvent(t *testing.T, payload types.PhotoUploadedEvent) event.Event {
	t.Helper()
	e := event.New()
	e.SetID("evt-1")
	e.SetSource("/client")
	e.SetType(shared.EventTypePhotoUploaded)
	if err := e.SetData(event.ApplicationJSON, payload); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExtractPhotoMetadata_Success(t *testing.T) {
	f := setup(t, exerciseGenerator())

	err := ExtractPhotoMetadata(context.Background(), photoEvent(t, types.PhotoUploadedEvent{
		PhotoID:       "photo-1",
		UserID:        "user-1",
		ImageRef:      "gs://fitglue-photos/u/1.png",
		Domain:        "exercise",
		CorrelationID: "corr-1",
	}))
	if err != nil {
		t.Fatalf("ExtractPhotoMetadata: %v", err)
	}

	update := f.updates["photo-1"]
	if update == nil {
		t.Fatal("photo was not updated")
	}
	if update["analysis_status"] != string(types.AnalysisStatusCompleted) || update["error_kind"] != nil {
		t.Errorf("unexpected status fields: %v", update)
	}
	md, _ := update["metadata"].(map[string]interface{})
	if md["exercise_type"] != "러닝" || md["time_period"] != "morning" || md["intensity"] != "moderate" {
		t.Errorf("unexpected metadata: %v", md)
	}
	if c, _ := update["confidence_score"].(float64); c <= 0.8 {
		t.Errorf("confidence_score = %v", update["confidence_score"])
	}

	if len(f.notes) != 1 || f.notes[0].PhotoID != "photo-1" || f.notes[0].CorrelationID != "corr-1" || f.notes[0].UserID != "user-1" {
		t.Errorf("unexpected notifications: %+v", f.notes)
	}
	last := f.statuses[len(f.statuses)-1]
	if last != types.ExecutionStatusSuccess {
		t.Errorf("final execution status = %v", last)
	}
}

func TestExtractPhotoMetadata_CompletesFromPhotoRecord(t *testing.T) {
	gen := &mocks.MockGenerator{
		GenerateFunc: func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
			return &ai.Response{Text: `{"foodName":"비빔밥","mainIngredients":["밥","나물"],"estimatedCalories":550}`}, nil
		},
	}
	f := setup(t, gen)

	if err := ExtractPhotoMetadata(context.Background(), photoEvent(t, types.PhotoUploadedEvent{PhotoID: "photo-2"})); err != nil {
		t.Fatalf("ExtractPhotoMetadata: %v", err)
	}
	md, _ := f.updates["photo-2"]["metadata"].(map[string]interface{})
	if md["food_name"] != "비빔밥" || md["estimated_calories"] != int64(550) {
		t.Errorf("unexpected diet metadata: %v", md)
	}
	if len(f.notes) != 1 || f.notes[0].UserID != "user-from-db" || f.notes[0].Domain != "diet" {
		t.Errorf("unexpected notifications: %+v", f.notes)
	}
}

func TestExtractPhotoMetadata_DegradedIsAcknowledged(t *testing.T) {
	gen := &mocks.MockGenerator{
		GenerateFunc: func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
			return nil, errors.New("connection reset")
		},
	}
	f := setup(t, gen)

	err := ExtractPhotoMetadata(context.Background(), photoEvent(t, types.PhotoUploadedEvent{
		PhotoID: "photo-3", UserID: "u", ImageRef: "gs://fitglue-photos/u/3.png", Domain: "exercise",
	}))
	if err != nil {
		t.Fatalf("degraded extraction should not fail the function: %v", err)
	}
	update := f.updates["photo-3"]
	if update["analysis_status"] != string(types.AnalysisStatusDegraded) || update["error_kind"] != "ai_service" {
		t.Errorf("unexpected update: %v", update)
	}
	if update["confidence_score"] != 0.1 {
		t.Errorf("fallback confidence = %v", update["confidence_score"])
	}
	if last := f.statuses[len(f.statuses)-1]; last != types.ExecutionStatusDegraded {
		t.Errorf("final execution status = %v", last)
	}
}

func TestExtractPhotoMetadata_ContractViolation(t *testing.T) {
	f := setup(t, exerciseGenerator())

	err := ExtractPhotoMetadata(context.Background(), photoEvent(t, types.PhotoUploadedEvent{
		PhotoID: "photo-4", UserID: "u", ImageRef: "not a locator", Domain: "exercise",
	}))
	if err == nil {
		t.Fatal("expected contract violation to fail the function")
	}
	update := f.updates["photo-4"]
	if update["analysis_status"] != string(types.AnalysisStatusRejected) || update["error_kind"] != "image_processing" {
		t.Errorf("photo should be marked rejected, got %v", update)
	}
	if _, ok := update["metadata"]; ok {
		t.Error("no metadata should be written for a rejected upload")
	}
	if last := f.statuses[len(f.statuses)-1]; last != types.ExecutionStatusFailed {
		t.Errorf("final execution status = %v", last)
	}
	if len(f.notes) != 0 {
		t.Errorf("no notification expected, got %+v", f.notes)
	}
}

func TestExtractPhotoMetadata_InvalidPayload(t *testing.T) {
	setup(t, exerciseGenerator())

	tests := []struct {
		name    string
		payload types.PhotoUploadedEvent
	}{
		{"missing photo id", types.PhotoUploadedEvent{ImageRef: "gs://fitglue-photos/a.png", Domain: "exercise"}},
		{"unknown domain", types.PhotoUploadedEvent{PhotoID: "p", UserID: "u", ImageRef: "gs://fitglue-photos/a.png", Domain: "sleep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ExtractPhotoMetadata(context.Background(), photoEvent(t, tt.payload)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func pushRequest(t *testing.T, payload types.PhotoUploadedEvent) *http.Request {
	t.Helper()
	data, _ := json.Marshal(payload)
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"data":      base64.StdEncoding.EncodeToString(data),
			"messageId": "push-1",
		},
		"subscription": "projects/p/subscriptions/s",
	}
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestExtractPhotoMetadataHTTP(t *testing.T) {
	tests := []struct {
		name       string
		imageRef   string
		domain     string
		wantCode   int
		wantStatus types.AnalysisStatus
	}{
		{"success", "gs://fitglue-photos/u/1.png", "exercise", http.StatusOK, types.AnalysisStatusCompleted},
		{"missing object is degraded, not retried", "gs://other-bucket/u/1.png", "exercise", http.StatusOK, types.AnalysisStatusDegraded},
		{"contract violation is acknowledged", "ftp:/broken", "exercise", http.StatusOK, types.AnalysisStatusRejected},
		{"unknown domain is acknowledged", "gs://fitglue-photos/u/1.png", "sleep", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, exerciseGenerator())
			rec := httptest.NewRecorder()
			ExtractPhotoMetadataHTTP(rec, pushRequest(t, types.PhotoUploadedEvent{
				PhotoID: "photo-http", UserID: "u", ImageRef: tt.imageRef, Domain: tt.domain,
			}))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := f.updates["photo-http"]["analysis_status"]; tt.wantStatus != "" && got != string(tt.wantStatus) {
				t.Errorf("analysis_status = %v, want %s", got, tt.wantStatus)
			}
		})
	}
}

func TestExtractPhotoMetadataHTTP_RejectedBody(t *testing.T) {
	setup(t, exerciseGenerator())
	rec := httptest.NewRecorder()
	ExtractPhotoMetadataHTTP(rec, pushRequest(t, types.PhotoUploadedEvent{
		PhotoID: "photo-bad", UserID: "u", ImageRef: "ftp:/broken", Domain: "exercise",
	}))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	if body["status"] != "rejected" || body["error"] == "" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestExtractPhotoMetadataHTTP_TransientFailureRetried(t *testing.T) {
	setup(t, exerciseGenerator())
	svc.DB.(*mocks.MockDatabase).UpdatePhotoFunc = func(ctx context.Context, id string, data map[string]interface{}) error {
		return errors.New("firestore unavailable")
	}

	rec := httptest.NewRecorder()
	ExtractPhotoMetadataHTTP(rec, pushRequest(t, types.PhotoUploadedEvent{
		PhotoID: "photo-http", UserID: "u", ImageRef: "gs://fitglue-photos/u/1.png", Domain: "exercise",
	}))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestExtractPhotoMetadataHTTP_BadBody(t *testing.T) {
	setup(t, exerciseGenerator())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	ExtractPhotoMetadataHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	setup(t, exerciseGenerator())
	if err := ExtractPhotoMetadata(context.Background(), photoEvent(t, types.PhotoUploadedEvent{
		PhotoID: "photo-m", UserID: "u", ImageRef: "gs://fitglue-photos/u/m.png", Domain: "exercise",
	})); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `vision_extractions_total{domain="exercise",kind="none",outcome="success"} 1`) {
		t.Errorf("missing extraction counter in:\n%s", rec.Body.String())
	}
}
