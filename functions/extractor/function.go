package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/bootstrap"
	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	"github.com/ripixel/fitglue-vision/pkg/extraction"
	"github.com/ripixel/fitglue-vision/pkg/framework"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/database"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

const serviceName = "vision-extractor"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	// CloudEvent handler for EventArc triggers (photo-uploaded topic)
	functions.CloudEvent("ExtractPhotoMetadata", ExtractPhotoMetadata)

	// HTTP handler for push subscriptions - returns 500 only for transient failures
	functions.HTTP("ExtractPhotoMetadataHTTP", ExtractPhotoMetadataHTTP)

	functions.HTTP("Metrics", Metrics)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
		if svcErr != nil {
			slog.Error("Failed to initialize service", "error", svcErr)
		}
	})
	return svc, svcErr
}

// ExtractPhotoMetadata is the entry point for EventArc triggers
func ExtractPhotoMetadata(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %w", err)
	}
	return framework.WrapCloudEvent(serviceName, svc, extractHandler)(ctx, e)
}

// ExtractPhotoMetadataHTTP is the HTTP handler for push subscriptions.
// Degraded extractions and rejected uploads are acknowledged with 200 so Pub/Sub
// does not redeliver them; only transient failures return 500.
func ExtractPhotoMetadataHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	svc, err := initService(ctx)
	if err != nil {
		slog.Error("Service init failed", "error", err)
		http.Error(w, fmt.Sprintf("service init failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Try CloudEvents format first (structured or binary)
	event, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		event, err = parseCloudEventFromPubSubPush(r)
		if err != nil {
			slog.Error("Failed to parse event from request", "error", err)
			http.Error(w, fmt.Sprintf("failed to parse event: %v", err), http.StatusBadRequest)
			return
		}
	}

	if handlerErr := framework.WrapCloudEvent(serviceName, svc, extractHandler)(ctx, *event); handlerErr != nil {
		var rejected *rejectedError
		if errors.As(handlerErr, &rejected) {
			slog.Warn("Upload rejected, acknowledging without retry", "error", handlerErr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "rejected", "error": handlerErr.Error()})
			return
		}
		slog.Error("Handler failed, returning 500 for retry", "error", handlerErr)
		http.Error(w, handlerErr.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Metrics serves the Prometheus registry of this instance.
func Metrics(w http.ResponseWriter, r *http.Request) {
	svc, err := initService(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("service init failed: %v", err), http.StatusInternalServerError)
		return
	}
	svc.Metrics.Handler().ServeHTTP(w, r)
}

// parseCloudEventFromPubSubPush parses a CloudEvent from a Pub/Sub push message.
func parseCloudEventFromPubSubPush(r *http.Request) (*cloudevents.Event, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	// {"message": {"data": "base64...", "messageId": "...", ...}, "subscription": "..."}
	var pushMsg struct {
		Message struct {
			Data        []byte            `json:"data"`
			Attributes  map[string]string `json:"attributes"`
			MessageID   string            `json:"messageId"`
			PublishTime time.Time         `json:"publishTime"`
		} `json:"message"`
		Subscription string `json:"subscription"`
	}
	if err := json.Unmarshal(body, &pushMsg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push message: %w", err)
	}
	if len(pushMsg.Message.Data) == 0 {
		return nil, fmt.Errorf("no data in push message")
	}

	var event cloudevents.Event
	if err := json.Unmarshal(pushMsg.Message.Data, &event); err == nil && event.Type() != "" {
		return &event, nil
	}

	// Raw photo-uploaded payload
	event = cloudevents.NewEvent()
	event.SetID(pushMsg.Message.MessageID)
	event.SetSource(shared.EventSourceExtractor)
	event.SetType(shared.EventTypePhotoUploaded)
	if !pushMsg.Message.PublishTime.IsZero() {
		event.SetTime(pushMsg.Message.PublishTime)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, json.RawMessage(pushMsg.Message.Data)); err != nil {
		return nil, fmt.Errorf("failed to set event data: %w", err)
	}
	return &event, nil
}

// rejectedError marks failures that no redelivery can fix.
type rejectedError struct{ err error }

func (e *rejectedError) Error() string { return e.err.Error() }
func (e *rejectedError) Unwrap() error { return e.err }

func reject(err error) error { return &rejectedError{err: err} }

// extractOutputs is recorded on the execution log.
type extractOutputs struct {
	PhotoID       string               `json:"photoId"`
	CorrelationID string               `json:"correlationId"`
	Domain        string               `json:"domain"`
	Status        types.AnalysisStatus `json:"status"`
	Confidence    float64              `json:"confidence"`
	ErrorKind     string               `json:"errorKind,omitempty"`
	Fallback      bool                 `json:"fallback"`
	Strategy      string               `json:"strategy,omitempty"`
	Attempts      int                  `json:"attempts"`
	DurationMs    int64                `json:"durationMs"`

	cause error
}

func (o *extractOutputs) DegradedCause() error { return o.cause }

// extractHandler contains the business logic
func extractHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	svc := fwCtx.Service

	// 1. Decode and complete the request
	var payload types.PhotoUploadedEvent
	if err := json.Unmarshal(e.Data(), &payload); err != nil {
		return nil, reject(fmt.Errorf("invalid photo-uploaded payload: %w", err))
	}
	if payload.PhotoID == "" {
		return nil, reject(fmt.Errorf("missing photoId in payload"))
	}
	if payload.ImageRef == "" || payload.Domain == "" || payload.UserID == "" {
		photo, err := svc.DB.GetPhoto(ctx, payload.PhotoID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil, reject(fmt.Errorf("load photo %s: %w", payload.PhotoID, err))
		}
		if err != nil {
			return nil, fmt.Errorf("load photo %s: %w", payload.PhotoID, err)
		}
		payload = completeFromPhoto(payload, photo)
	}
	domain, err := metadata.ParseDomain(payload.Domain)
	if err != nil {
		return nil, reject(err)
	}

	logger := fwCtx.Logger.With("photo_id", payload.PhotoID, "domain", domain)
	logger.Info("Starting extraction", "image_ref", payload.ImageRef)

	// 2. Extract
	result := svc.Orchestrator.Extract(ctx, extraction.Request{
		ImageRef:      payload.ImageRef,
		Domain:        domain,
		CorrelationID: payload.CorrelationID,
	})
	outputs := outputsFor(payload.PhotoID, result)
	if result.ContractViolation() {
		// Leave the photo in a terminal state instead of pending forever.
		outputs.Status = types.AnalysisStatusRejected
		if err := svc.DB.UpdatePhoto(ctx, payload.PhotoID, rejectedUpdate(result)); err != nil {
			logger.Warn("Failed to mark photo as rejected", "error", err)
		}
		return outputs, reject(result.Failure)
	}

	// 3. Persist onto the photo record
	if err := svc.DB.UpdatePhoto(ctx, payload.PhotoID, photoUpdate(result)); err != nil {
		return outputs, fmt.Errorf("update photo %s: %w", payload.PhotoID, err)
	}

	// 4. Notify; the metadata is already stored, so a failed publish is not retried
	if svc.Notifications != nil {
		note := types.AnalysisNotification{
			UserID:          payload.UserID,
			PhotoID:         payload.PhotoID,
			Domain:          string(domain),
			Status:          outputs.Status,
			ConfidenceScore: outputs.Confidence,
			CorrelationID:   result.CorrelationID,
		}
		if err := svc.Notifications.NotifyAnalysisReady(ctx, note); err != nil {
			logger.Warn("Failed to publish analysis-ready notification", "error", err)
		}
	}

	logger.Info("Extraction stored",
		"status", outputs.Status,
		"confidence", outputs.Confidence,
		"correlation_id", result.CorrelationID)
	return outputs, nil
}

func completeFromPhoto(p types.PhotoUploadedEvent, photo *types.PhotoRecord) types.PhotoUploadedEvent {
	if p.ImageRef == "" {
		p.ImageRef = photo.ImageRef
	}
	if p.Domain == "" {
		p.Domain = photo.Domain
	}
	if p.UserID == "" {
		p.UserID = photo.UserId
	}
	return p
}

func outputsFor(photoID string, res *extraction.Result) *extractOutputs {
	out := &extractOutputs{
		PhotoID:       photoID,
		CorrelationID: res.CorrelationID,
		Domain:        string(res.Domain),
		Status:        types.AnalysisStatusCompleted,
		Confidence:    res.Record.Confidence(),
		Fallback:      res.Fallback,
		Strategy:      res.Strategy,
		Attempts:      res.Attempts,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Degraded() {
		out.Status = types.AnalysisStatusDegraded
		out.ErrorKind = string(res.Failure.Kind)
		out.cause = res.Failure
	}
	return out
}

func photoUpdate(res *extraction.Result) map[string]interface{} {
	status := types.AnalysisStatusCompleted
	var errorKind interface{}
	if res.Degraded() {
		status = types.AnalysisStatusDegraded
		errorKind = string(res.Failure.Kind)
	}
	return map[string]interface{}{
		"metadata":         database.MetadataToFirestore(res.Record),
		"confidence_score": res.Record.Confidence(),
		"analysis_status":  string(status),
		"error_kind":       errorKind,
		"extracted_at":     time.Now().UTC(),
	}
}

func rejectedUpdate(res *extraction.Result) map[string]interface{} {
	return map[string]interface{}{
		"analysis_status": string(types.AnalysisStatusRejected),
		"error_kind":      string(res.Failure.Kind),
		"extracted_at":    time.Now().UTC(),
	}
}
