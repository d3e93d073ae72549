// Package fetch retrieves course package archives from remote sources.
//
// This file defines sentinel errors and the classified error wrapper for
// fetch failures. Callers use errors.Is/errors.As for typed assertions
// rather than string matching.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/lmsfoundry/scormhost/types"
)

// Sentinel errors for fetch failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrUnsupportedScheme indicates a package reference whose URL scheme
	// has no registered source (only http, https, s3 and file are known).
	ErrUnsupportedScheme = errors.New("unsupported source scheme")

	// ErrRemoteStatus indicates the remote answered with a non-success
	// HTTP status.
	ErrRemoteStatus = errors.New("remote returned non-success status")

	// ErrTimeout indicates the fetch exceeded its deadline. Logged as an
	// operational alert by callers since it may indicate infrastructure
	// trouble rather than a bad package.
	ErrTimeout = errors.New("fetch timed out")

	// ErrNetwork indicates a transport-level failure (connection refused,
	// DNS, unreachable host).
	ErrNetwork = errors.New("network error")
)

// FetchError wraps an underlying error with fetch classification.
// It preserves the original error in the chain for errors.As inspection.
type FetchError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Ref is the package reference being fetched.
	Ref types.PackageRef
	// Err is the underlying error.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v: %v", e.Ref, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *FetchError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// newFetchError classifies and wraps a fetch failure. Timeouts are
// recognized across transports via context.DeadlineExceeded and the
// net.Error Timeout contract.
func newFetchError(ref types.PackageRef, err error) *FetchError {
	return &FetchError{Kind: classify(err), Ref: ref, Err: err}
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, ErrRemoteStatus) || errors.Is(err, ErrUnsupportedScheme) {
		return err
	}
	return ErrNetwork
}
