package vfs

import (
	"github.com/pkg/errors"
)

// Error taxonomy surfaced to consumers. Match with errors.Is.
var (
	// ErrNotFound is returned when a path segment is absent, on the backend
	// or inside an archive.
	ErrNotFound = errors.New("not found")

	// ErrNotAnArchive is returned when a resource was explicitly mounted as
	// an archive but no provider recognizes it.
	ErrNotAnArchive = errors.New("not an archive")

	// ErrCorruptArchive is returned when the header or index of an archive
	// cannot be parsed. It is fatal for that archive only.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrTruncatedStream is returned by a read when decoding fails midway.
	ErrTruncatedStream = errors.New("truncated stream")

	// ErrUnsupported is returned when a format is recognized by name but no
	// decoder is available for it.
	ErrUnsupported = errors.New("unsupported archive format")

	// ErrIsDir is returned when opening a directory for reading.
	ErrIsDir = errors.New("is a directory")

	// ErrNotDir is returned when listing a regular file.
	ErrNotDir = errors.New("not a directory")
)

// PathError records the operation and virtual path that caused an error.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with op and path. Errors that already carry a
// PathError are returned untouched so the innermost path is reported.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Op: op, Path: path, Err: err}
}

type classified struct {
	class error
	cause error
}

func (e *classified) Error() string {
	return e.class.Error() + ": " + e.cause.Error()
}

func (e *classified) Unwrap() []error {
	return []error{e.class, e.cause}
}

// Classify tags cause with one of the taxonomy errors so that both
// errors.Is(err, class) and errors.Is(err, cause) hold.
func Classify(class, cause error) error {
	if cause == nil {
		return class
	}
	if errors.Is(cause, class) {
		return cause
	}
	return &classified{class: class, cause: cause}
}
