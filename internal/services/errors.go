package services

import (
	"github.com/go-faster/errors"
	"github.com/hiendaovinh/toolkit/pkg/errorx"

	"gaslessrelay/internal/pkg/limiter"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrSubmission       = errors.New("submission failed")
)

// ValidationError is a malformed request, rejected before any side effect.
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

// AuthorizationError is an envelope no trusted key verified. Its message never carries the
// cause, which stays available through Unwrap for logs.
type AuthorizationError struct {
	Cause error
}

func (e *AuthorizationError) Error() string { return ErrUnauthorized.Error() }

func (e *AuthorizationError) Unwrap() error { return e.Cause }

func (e *AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

type PriceSourceError struct {
	Cause error
}

func (e *PriceSourceError) Error() string {
	return "price source: " + e.Cause.Error()
}

func (e *PriceSourceError) Unwrap() error { return e.Cause }

func (e *PriceSourceError) Is(target error) bool { return target == ErrPriceUnavailable }

// SubmissionError means the network rejected the transaction or its confirmation failed.
type SubmissionError struct {
	Signature string
	Cause     error
}

func (e *SubmissionError) Error() string {
	return "submission: " + e.Cause.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

func invalid(err error) error { return &ValidationError{Cause: err} }

func unauthorized(err error) error { return &AuthorizationError{Cause: err} }

// Classify maps domain errors onto errorx kinds for the HTTP layer.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return errorx.Wrap(ErrUnauthorized, errorx.Authn)
	case errors.Is(err, ErrInvalidRequest):
		return errorx.Wrap(err, errorx.Validation)
	case errors.Is(err, limiter.ErrRateLimited):
		return errorx.Wrap(err, errorx.RateLimiting)
	}
	return errorx.Wrap(err, errorx.Service)
}
