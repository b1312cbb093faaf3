// Package errors provides the structured error type for the extraction pipeline.
//
// Every failure that crosses a component boundary is expressed as an
// ExtractionError so that logging, retry and degradation decisions can be
// made from the Kind alone.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorises an extraction failure.
type Kind string

const (
	KindImageProcessing Kind = "image_processing"
	KindAIService       Kind = "ai_service"
	KindParsing         Kind = "parsing"
	KindUnknown         Kind = "unknown"
)

// ExtractionError is the base error type for all pipeline failures.
type ExtractionError struct {
	Kind       Kind              // Failure category
	Message    string            // Human-readable error message
	Cause      error             // Underlying error (if any)
	RetryCount int               // Attempts made before giving up
	Retryable  bool              // Whether the caller may retry the whole extraction
	Metadata   map[string]string // Additional context
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExtractionError sentinel of the same kind and message.
func (e *ExtractionError) Is(target error) bool {
	t, ok := target.(*ExtractionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func (e *ExtractionError) clone() *ExtractionError {
	c := *e
	return &c
}

// WithCause wraps an underlying error.
func (e *ExtractionError) WithCause(cause error) *ExtractionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage replaces the message.
func (e *ExtractionError) WithMessage(msg string) *ExtractionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithRetryCount records how many attempts were made.
func (e *ExtractionError) WithRetryCount(n int) *ExtractionError {
	c := e.clone()
	c.RetryCount = n
	return c
}

// WithMetadata adds contextual metadata.
func (e *ExtractionError) WithMetadata(key, value string) *ExtractionError {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	c := e.clone()
	c.Metadata = meta
	return c
}

// Pre-defined sentinel errors for common cases.
// Use these with errors.Is() or derive from them with .WithCause().
var (
	ErrImageNotFound      = &ExtractionError{Kind: KindImageProcessing, Message: "image not found"}
	ErrImageUndecodable   = &ExtractionError{Kind: KindImageProcessing, Message: "image could not be decoded"}
	ErrUnsupportedLocator = &ExtractionError{Kind: KindImageProcessing, Message: "unsupported image locator"}
	ErrImageRead          = &ExtractionError{Kind: KindImageProcessing, Message: "image read failed", Retryable: true}

	ErrAIRetriesExhausted = &ExtractionError{Kind: KindAIService, Message: "ai service retries exhausted", Retryable: true}
	ErrAIRejected         = &ExtractionError{Kind: KindAIService, Message: "ai service rejected request"}
	ErrAIEmptyResponse    = &ExtractionError{Kind: KindAIService, Message: "ai service returned no usable content", Retryable: true}

	ErrNoStructuredData = &ExtractionError{Kind: KindParsing, Message: "no structured data in response"}

	ErrUnknown = &ExtractionError{Kind: KindUnknown, Message: "unknown failure"}
)

// New creates a new ExtractionError with the given kind and message.
func New(kind Kind, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message}
}

// NewRetryable creates a new retryable ExtractionError.
func NewRetryable(kind Kind, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Retryable: true}
}

// Wrap wraps an error with an ExtractionError.
func Wrap(cause error, kind Kind, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Cause: cause}
}

// WrapRetryable wraps an error with a retryable ExtractionError.
func WrapRetryable(cause error, kind Kind, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Cause: cause, Retryable: true}
}

// As returns the first ExtractionError in err's chain.
func As(err error) (*ExtractionError, bool) {
	var ee *ExtractionError
	if stderrors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ee, ok := As(err); ok {
		return ee.Retryable
	}
	return false
}

// KindOf extracts the failure kind from an error. Foreign errors are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ee, ok := As(err); ok {
		return ee.Kind
	}
	return KindUnknown
}

// RetryCountOf returns the recorded attempt count, or 0.
func RetryCountOf(err error) int {
	if ee, ok := As(err); ok {
		return ee.RetryCount
	}
	return 0
}

// Normalize converts any error into an ExtractionError, tagging foreign errors as unknown.
func Normalize(err error) *ExtractionError {
	if err == nil {
		return nil
	}
	if ee, ok := As(err); ok {
		return ee
	}
	return ErrUnknown.WithCause(err).WithMessage(err.Error())
}
