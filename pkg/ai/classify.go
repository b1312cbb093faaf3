package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class is the retry-relevant category of a transport failure.
type Class string

const (
	ClassRateLimited    Class = "rate_limited"
	ClassTimeout        Class = "timeout"
	ClassUnavailable    Class = "unavailable"
	ClassServer         Class = "server"
	ClassEmpty          Class = "empty_response"
	ClassInvalidRequest Class = "invalid_request"
	ClassUnauthorized   Class = "unauthorized"
	ClassSafety         Class = "safety"
	ClassCanceled       Class = "canceled"
	ClassUnknown        Class = "unknown"
)

// Retryable reports whether another attempt could plausibly succeed.
func (c Class) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassTimeout, ClassUnavailable, ClassServer, ClassEmpty:
		return true
	}
	return false
}

// TransportError is produced once at the backend boundary.
type TransportError struct {
	Class   Class
	Backend string
	// Reason is the termination reason for empty or blocked responses.
	Reason  TerminationReason
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Class)
	if e.Backend != "" {
		fmt.Fprintf(&b, " (%s)", e.Backend)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " [termination=%s]", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// EmptyResponse builds the error for a response with no usable text.
func EmptyResponse(backend string, reason TerminationReason, msg string) *TransportError {
	return &TransportError{Class: ClassEmpty, Backend: backend, Reason: reason, Message: msg}
}

// Blocked builds the error for a safety-filtered prompt or candidate.
func Blocked(backend string, reason TerminationReason, err error) *TransportError {
	return &TransportError{Class: ClassSafety, Backend: backend, Reason: reason, Message: "content blocked by safety filters", Err: err}
}

// Wrap classifies a raw SDK error and tags it with the backend name.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Class: Classify(err), Backend: backend, Err: err}
}

// Classify maps an error onto a Class. Structured signals are checked first;
// message matching is the last resort for SDKs that expose nothing better.
func Classify(err error) Class {
	if err == nil {
		return ""
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Class
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown && s.Code() != codes.OK {
		return classifyGRPC(s.Code())
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return ClassifyHTTPStatus(gerr.Code)
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return ClassTimeout
		}
		return ClassUnavailable
	}

	return classifyMessage(err.Error())
}

func classifyGRPC(code codes.Code) Class {
	switch code {
	case codes.ResourceExhausted:
		return ClassRateLimited
	case codes.DeadlineExceeded:
		return ClassTimeout
	case codes.Unavailable:
		return ClassUnavailable
	case codes.Internal, codes.DataLoss, codes.Aborted:
		return ClassServer
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange, codes.NotFound, codes.Unimplemented, codes.AlreadyExists:
		return ClassInvalidRequest
	case codes.Unauthenticated, codes.PermissionDenied:
		return ClassUnauthorized
	case codes.Canceled:
		return ClassCanceled
	}
	return ClassUnknown
}

// ClassifyHTTPStatus maps an HTTP status code onto a Class.
func ClassifyHTTPStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ClassTimeout
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return ClassUnavailable
	case code >= 500:
		return ClassServer
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ClassUnauthorized
	case code >= 400:
		return ClassInvalidRequest
	}
	return ClassUnknown
}

var messageRules = []struct {
	class    Class
	patterns []string
}{
	{ClassRateLimited, []string{"429", "rate limit", "quota", "resource exhausted", "resource_exhausted", "too many requests"}},
	{ClassTimeout, []string{"timeout", "timed out", "deadline"}},
	{ClassSafety, []string{"safety", "blocked"}},
	{ClassUnauthorized, []string{"401", "403", "permission", "unauthorized", "api key"}},
	{ClassUnavailable, []string{"503", "502", "unavailable", "connection reset", "connection refused", "eof", "network"}},
	{ClassServer, []string{"500", "internal error", "internal server"}},
	{ClassInvalidRequest, []string{"400", "invalid argument", "invalid request", "bad request"}},
}

func classifyMessage(msg string) Class {
	m := strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(m, p) {
				return rule.class
			}
		}
	}
	return ClassUnknown
}
