package types

import "google.golang.org/protobuf/types/known/timestamppb"

// ExecutionStatus tracks a function invocation through its lifecycle.
type ExecutionStatus int32

const (
	ExecutionStatusUnspecified ExecutionStatus = iota
	ExecutionStatusPending
	ExecutionStatusStarted
	ExecutionStatusSuccess
	ExecutionStatusFailed
	// ExecutionStatusDegraded marks a run that completed with fallback or empty metadata.
	ExecutionStatusDegraded
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionStatusPending:
		return "STATUS_PENDING"
	case ExecutionStatusStarted:
		return "STATUS_STARTED"
	case ExecutionStatusSuccess:
		return "STATUS_SUCCESS"
	case ExecutionStatusFailed:
		return "STATUS_FAILED"
	case ExecutionStatusDegraded:
		return "STATUS_DEGRADED"
	}
	return "STATUS_UNSPECIFIED"
}

// ExecutionRecord is stored in the executions collection, one per invocation.
type ExecutionRecord struct {
	ExecutionId   string                 `firestore:"execution_id"`
	Service       string                 `firestore:"service"`
	Status        ExecutionStatus        `firestore:"status"`
	Timestamp     *timestamppb.Timestamp `firestore:"timestamp"`
	StartTime     *timestamppb.Timestamp `firestore:"start_time"`
	EndTime       *timestamppb.Timestamp `firestore:"end_time,omitempty"`
	UserId        *string                `firestore:"user_id,omitempty"`
	CorrelationId *string                `firestore:"correlation_id,omitempty"`
	TriggerType   string                 `firestore:"trigger_type"`
	InputsJson    *string                `firestore:"inputs_json,omitempty"`
	OutputsJson   *string                `firestore:"outputs_json,omitempty"`
	ErrorMessage  *string                `firestore:"error_message,omitempty"`
}
