package types

import "time"

// AnalysisStatus is the state of a photo's metadata as seen by the client.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	// AnalysisStatusDegraded means metadata is empty or came from the fallback scan.
	AnalysisStatusDegraded AnalysisStatus = "degraded"
	// AnalysisStatusRejected means the upload can never be analyzed (bad locator or payload).
	AnalysisStatusRejected AnalysisStatus = "rejected"
)

// PhotoRecord is the uploaded-photo document owned by the client application.
type PhotoRecord struct {
	PhotoId        string                 `firestore:"photo_id"`
	UserId         string                 `firestore:"user_id"`
	ImageRef       string                 `firestore:"image_ref"`
	Domain         string                 `firestore:"domain"`
	AnalysisStatus AnalysisStatus         `firestore:"analysis_status"`
	Metadata       map[string]interface{} `firestore:"metadata,omitempty"`
	UploadedAt     time.Time              `firestore:"uploaded_at"`
}

// PhotoUploadedEvent is the CloudEvent payload that triggers extraction.
type PhotoUploadedEvent struct {
	PhotoID       string `json:"photoId"`
	UserID        string `json:"userId"`
	ImageRef      string `json:"imageRef"`
	Domain        string `json:"domain"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// AnalysisNotification tells the client that a photo's metadata is ready.
type AnalysisNotification struct {
	UserID          string         `json:"userId"`
	PhotoID         string         `json:"photoId"`
	Domain          string         `json:"domain"`
	Status          AnalysisStatus `json:"status"`
	ConfidenceScore float64        `json:"confidenceScore"`
	CorrelationID   string         `json:"correlationId,omitempty"`
}
