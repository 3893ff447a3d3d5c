package domain

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a generation cycle did not produce a result.
type FailureKind string

const (
	// KindNeedsCredential means no usable API credential is selected. The caller
	// should prompt for one and retry.
	KindNeedsCredential FailureKind = "needs_credential"
	// KindNeedsConfirmation means no reference image was supplied and the caller
	// has not acknowledged the degraded, generic output.
	KindNeedsConfirmation FailureKind = "needs_confirmation"
	// KindCredentialRejected means the provider refused the credential.
	KindCredentialRejected FailureKind = "credential_rejected"
	// KindEmptyResponse means the copy call returned no text payload.
	KindEmptyResponse FailureKind = "empty_response"
	// KindMalformedResponse means the copy payload does not match the schema.
	KindMalformedResponse FailureKind = "malformed_response"
	// KindNoImageReturned means an image call returned no inline image part.
	KindNoImageReturned FailureKind = "no_image_returned"
	// KindProviderError covers any other transport or provider failure.
	KindProviderError FailureKind = "provider_error"
	// KindInvalidRequest is returned for blank briefs or missing edit inputs.
	KindInvalidRequest FailureKind = "invalid_request"
	// KindBusy is returned when a batch is already in flight.
	KindBusy FailureKind = "busy"
	// KindCanceled is returned when the caller's context ends the cycle.
	KindCanceled FailureKind = "canceled"
)

// Failure is the error type surfaced by the generation client and the
// orchestrator. Message is the human readable text shown to the user.
type Failure struct {
	Kind    FailureKind
	Message string
	// InvalidateCredential asks the caller to forget its cached
	// "credential present" flag so the next attempt re-prompts.
	InvalidateCredential bool
	Err                  error
}

// NewFailure builds a Failure without an underlying cause.
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure builds a Failure around err. The message defaults to err's text.
func WrapFailure(kind FailureKind, err error, message string) *Failure {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Message != "" {
		return f.Message
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Recoverable reports whether the caller can resolve the failure by itself
// (selecting a credential or confirming generic mode) rather than it being a
// terminal outcome of a cycle.
func (f *Failure) Recoverable() bool {
	return f.Kind == KindNeedsCredential || f.Kind == KindNeedsConfirmation
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind carried by err. Errors that are not a
// Failure are reported as provider errors, except context cancellation.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindProviderError
}

// ToFailure converts any error into a *Failure, keeping existing ones intact.
func ToFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	kind := KindOf(err)
	if kind == KindCanceled {
		return WrapFailure(kind, err, fmt.Sprintf("generation canceled: %v", err))
	}
	return WrapFailure(kind, err, "")
}
