// Package inference defines the damage-assessment capability the workbench
// depends on, plus the backends and decorators that implement it.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/media"
)

// Request is the input to an assessment: the claim and its photo set.
// Uploads carries the raw bytes for Photos, index-aligned, when available.
type Request struct {
	Claim   claims.Claim
	Photos  []claims.Photo
	Uploads []media.Upload
}

// Assessor produces an assessment for a claim.
type Assessor interface {
	Assess(ctx context.Context, req Request) (claims.Assessment, error)
}

// AssessorFunc adapts a function to the Assessor interface.
type AssessorFunc func(ctx context.Context, req Request) (claims.Assessment, error)

// Assess calls f.
func (f AssessorFunc) Assess(ctx context.Context, req Request) (claims.Assessment, error) {
	return f(ctx, req)
}

// Error is the failure type every assessor returns.
type Error struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("inference: %v", e.Err)
	}
	return fmt.Sprintf("inference: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Wrap converts any error into an *Error. Context expiry and cancellation
// are retryable; an existing *Error is returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	retryable := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	return &Error{Op: op, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is an inference failure worth retrying.
func IsRetryable(err error) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// Summary returns a compact operator-facing description of a failure.
func Summary(err error) string {
	var ie *Error
	if errors.As(err, &ie) && ie.Err != nil {
		return ie.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
