package shared

import (
	"context"
	"errors"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/ripixel/fitglue-vision/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error

	// Photos
	GetPhoto(ctx context.Context, id string) (*types.PhotoRecord, error)
	UpdatePhoto(ctx context.Context, id string, data map[string]interface{}) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Secrets Interface ---

type SecretStore interface {
	GetSecret(ctx context.Context, projectID, name string) (string, error)
}

// --- Notification Interfaces ---

type NotificationService interface {
	NotifyAnalysisReady(ctx context.Context, n types.AnalysisNotification) error
}

// ErrNotFound is wrapped by adapters when the requested object or document does not exist.
var ErrNotFound = errors.New("not found")
