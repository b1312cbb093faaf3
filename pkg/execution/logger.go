package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ripixel/fitglue-vision/pkg/types"
)

// Database is the slice of the store the execution log needs.
type Database interface {
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error
}

// ExecutionOptions contains optional fields for execution logging
type ExecutionOptions struct {
	UserID        string
	CorrelationID string
	TriggerType   string
	Inputs        interface{}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeJSON(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// LogPending creates an execution record with PENDING status and returns its id.
func LogPending(ctx context.Context, db Database, service string, opts ExecutionOptions) (string, error) {
	execID := fmt.Sprintf("%s-%d", service, time.Now().UnixNano())
	now := timestamppb.Now()

	record := &types.ExecutionRecord{
		ExecutionId:   execID,
		Service:       service,
		Status:        types.ExecutionStatusPending,
		Timestamp:     now,
		StartTime:     now,
		UserId:        stringPtr(opts.UserID),
		CorrelationId: stringPtr(opts.CorrelationID),
		TriggerType:   opts.TriggerType,
	}
	if s, ok := encodeJSON(opts.Inputs); ok {
		record.InputsJson = &s
	}

	if err := db.SetExecution(ctx, record); err != nil {
		return execID, fmt.Errorf("failed to log execution pending: %w", err)
	}
	return execID, nil
}

// LogStart moves a record to STARTED and fills in what was not known at PENDING time.
func LogStart(ctx context.Context, db Database, execID string, inputs interface{}, opts *ExecutionOptions) error {
	updates := map[string]interface{}{
		"status":     int32(types.ExecutionStatusStarted),
		"start_time": timestamppb.Now().AsTime(),
	}
	if opts != nil {
		if opts.UserID != "" {
			updates["user_id"] = opts.UserID
		}
		if opts.CorrelationID != "" {
			updates["correlation_id"] = opts.CorrelationID
		}
		if opts.TriggerType != "" {
			updates["trigger_type"] = opts.TriggerType
		}
	}
	if s, ok := encodeJSON(inputs); ok {
		updates["inputs_json"] = s
	}

	if err := db.UpdateExecution(ctx, execID, updates); err != nil {
		return fmt.Errorf("failed to log execution start: %w", err)
	}
	return nil
}

// LogSuccess updates an execution record with SUCCESS status
func LogSuccess(ctx context.Context, db Database, execID string, outputs interface{}) error {
	return finish(ctx, db, execID, types.ExecutionStatusSuccess, outputs, nil)
}

// LogDegraded marks a run that completed but produced fallback or empty metadata.
func LogDegraded(ctx context.Context, db Database, execID string, cause error, outputs interface{}) error {
	return finish(ctx, db, execID, types.ExecutionStatusDegraded, outputs, cause)
}

// LogFailure updates an execution record with FAILED status
func LogFailure(ctx context.Context, db Database, execID string, err error, outputs interface{}) error {
	return finish(ctx, db, execID, types.ExecutionStatusFailed, outputs, err)
}

func finish(ctx context.Context, db Database, execID string, status types.ExecutionStatus, outputs interface{}, cause error) error {
	now := timestamppb.Now().AsTime()
	updates := map[string]interface{}{
		"status":    int32(status),
		"timestamp": now,
		"end_time":  now,
	}
	if cause != nil {
		updates["error_message"] = cause.Error()
	}
	if s, ok := encodeJSON(outputs); ok {
		updates["outputs_json"] = s
	}

	if err := db.UpdateExecution(ctx, execID, updates); err != nil {
		return fmt.Errorf("failed to log execution %v: %w", status, err)
	}
	return nil
}
