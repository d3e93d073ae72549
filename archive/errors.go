// Package archive unpacks course package zip containers into scratch
// directories.
//
// This file defines sentinel errors and the classified error wrapper for
// extraction failures.
package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors for extraction failure classification.
var (
	// ErrCorruptArchive indicates the input is not a readable zip
	// container.
	ErrCorruptArchive = errors.New("corrupt or non-zip archive")

	// ErrPathTraversal indicates an entry whose path would resolve
	// outside the target directory. Rejected, never skipped: a traversal
	// entry is a hostile package, and callers log it as a security alert.
	ErrPathTraversal = errors.New("path traversal entry")

	// ErrEntryWrite indicates a disk write failed while unpacking an
	// entry.
	ErrEntryWrite = errors.New("entry write failed")

	// ErrTooLarge indicates the uncompressed content exceeded the
	// per-entry or total size bound.
	ErrTooLarge = errors.New("uncompressed content exceeds size bound")
)

// ExtractionError wraps an underlying error with extraction
// classification and the offending entry name, if any.
type ExtractionError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Entry is the archive entry involved, empty for container-level
	// failures.
	Entry string
	// Err is the underlying error.
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extract %q: %v: %v", e.Entry, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract: %v: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newExtractionError(kind error, entry string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Entry: entry, Err: err}
}
