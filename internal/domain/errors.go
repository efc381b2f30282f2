package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstream signals a transport failure or non-success status from the
	// completion or embedding endpoint.
	ErrUpstream = errors.New("upstream error")
	// ErrContentBlocked signals that the model declined to answer.
	ErrContentBlocked = errors.New("content blocked by model")
	// ErrMalformedOutput signals that structured model output failed to parse.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrVectorDimMismatch signals an embedding length invariant violation.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrAccessDenied signals a permission gate denial.
	ErrAccessDenied = errors.New("access denied")
	// ErrSecurityRejected signals a safety-check rejection.
	ErrSecurityRejected = errors.New("security rejected")
	// ErrRecordNotFound signals a missing record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnknownCollection signals a collection with no configured schema.
	ErrUnknownCollection = errors.New("unknown collection")
)

// SecurityRejectedError wraps ErrSecurityRejected with the human-readable
// reason the filter or mutation was refused.
type SecurityRejectedError struct {
	Reason string
}

func (e *SecurityRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSecurityRejected.Error(), e.Reason)
}

func (e *SecurityRejectedError) Unwrap() error { return ErrSecurityRejected }

// NewSecurityRejected creates a security rejection with a reason.
func NewSecurityRejected(reason string) error {
	return &SecurityRejectedError{Reason: reason}
}

// UpstreamError wraps ErrUpstream with the HTTP status and response body
// returned by the completion or embedding endpoint.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", ErrUpstream.Error(), e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s", ErrUpstream.Error(), e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// NewUpstream creates an upstream error with status and body detail.
func NewUpstream(status int, body string) error {
	return &UpstreamError{Status: status, Body: body}
}
