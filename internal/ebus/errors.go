package ebus

import (
	"context"
	"errors"
)

var (
	// ErrInvalidArgument is returned before any browser activity when the
	// route id is empty or the direction is not go/come.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFetchTimeout is returned once every attempt failed to render the
	// station list.
	ErrFetchTimeout = errors.New("fetch timeout")
)

// isRetryable reports whether an attempt error is worth another attempt.
// Cancellation of the caller's context never is.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

// permanentError marks attempt failures that another attempt cannot fix,
// such as a browser that cannot be started or a document goquery rejects.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}
