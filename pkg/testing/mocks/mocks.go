package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudevents/sdk-go/v2/event"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/ai"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	SetExecutionFunc    func(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecutionFunc func(ctx context.Context, id string, data map[string]interface{}) error
	GetPhotoFunc        func(ctx context.Context, id string) (*types.PhotoRecord, error)
	UpdatePhotoFunc     func(ctx context.Context, id string, data map[string]interface{}) error
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	return nil
}
func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	return nil
}
func (m *MockDatabase) GetPhoto(ctx context.Context, id string) (*types.PhotoRecord, error) {
	if m.GetPhotoFunc != nil {
		return m.GetPhotoFunc(ctx, id)
	}
	return nil, fmt.Errorf("photo %s: %w", id, shared.ErrNotFound)
}
func (m *MockDatabase) UpdatePhoto(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdatePhotoFunc != nil {
		return m.UpdatePhotoFunc(ctx, id, data)
	}
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}
func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Secrets ---
type MockSecretStore struct {
	GetSecretFunc func(ctx context.Context, projectID, name string) (string, error)
}

func (m *MockSecretStore) GetSecret(ctx context.Context, projectID, name string) (string, error) {
	if m.GetSecretFunc != nil {
		return m.GetSecretFunc(ctx, projectID, name)
	}
	return "mock-secret-value", nil
}

// --- Mock Notifications ---
type MockNotificationService struct {
	NotifyAnalysisReadyFunc func(ctx context.Context, n types.AnalysisNotification) error
}

func (m *MockNotificationService) NotifyAnalysisReady(ctx context.Context, n types.AnalysisNotification) error {
	if m.NotifyAnalysisReadyFunc != nil {
		return m.NotifyAnalysisReadyFunc(ctx, n)
	}
	return nil
}

// --- Mock AI Generator ---

// MockGenerator records every call so tests can assert on attempts and payloads.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error)

	mu    sync.Mutex
	calls [][]ai.Part
}

func (m *MockGenerator) Generate(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, parts)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, parts, cfg)
	}
	return &ai.Response{Text: "{}", TerminationReason: ai.TerminationStop}, nil
}

func (m *MockGenerator) Name() string { return "mock" }

// Calls returns the parts passed to each Generate call.
func (m *MockGenerator) Calls() [][]ai.Part {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]ai.Part, len(m.calls))
	copy(out, m.calls)
	return out
}
