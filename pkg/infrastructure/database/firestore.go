package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shared "github.com/ripixel/fitglue-vision/pkg"
	"github.com/ripixel/fitglue-vision/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore
type FirestoreAdapter struct {
	Client *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{Client: client}
}

// --- Executions ---

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	_, err := a.Client.Collection(shared.CollectionExecutions).Doc(record.ExecutionId).Set(ctx, record)
	return err
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	_, err := a.Client.Collection(shared.CollectionExecutions).Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}

// --- Photos ---

func (a *FirestoreAdapter) GetPhoto(ctx context.Context, id string) (*types.PhotoRecord, error) {
	snap, err := a.Client.Collection(shared.CollectionPhotos).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("photo %s: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return FirestoreToPhoto(snap.Ref.ID, snap.Data()), nil
}

// UpdatePhoto merges data into the photo document. The document is owned by
// the client app, so it is never created here.
func (a *FirestoreAdapter) UpdatePhoto(ctx context.Context, id string, data map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := a.Client.Collection(shared.CollectionPhotos).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("photo %s: %w", id, shared.ErrNotFound)
	}
	return err
}
