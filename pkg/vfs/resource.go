// Package vfs defines the capability set shared by every addressable
// resource: real files from a backend and entries inside archives.
package vfs

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// SizeUnknown is reported by resources whose size cannot be known without
// decoding them first.
const SizeUnknown int64 = -1

// Kind is the kind of a resource
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindArchiveRoot
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "dir"
	case KindArchiveRoot:
		return "archive"
	default:
		return "unknown"
	}
}

// IsDir returns true for kinds that can be listed.
func (k Kind) IsDir() bool {
	return k == KindDirectory || k == KindArchiveRoot
}

// Info holds resource metadata
type Info struct {
	Name    string
	Kind    Kind
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// Resource is the uniform contract every addressable resource satisfies.
//
// Path is the absolute virtual path of the resource and identifies it within
// a session. Open returns a fresh stream positioned at the first byte; List
// returns the immediate children of a directory-kind resource in their
// natural order.
type Resource interface {
	Path() string
	Name() string
	Stat(ctx context.Context) (Info, error)
	Open(ctx context.Context) (io.ReadCloser, error)
	List(ctx context.Context) ([]Resource, error)
}

// Writable is implemented by resources that can be opened for writing.
type Writable interface {
	OpenWrite(ctx context.Context) (io.WriteCloser, error)
}

// ReadAtCloser is a positioned read handle of known size.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Positioned is implemented by resources able to serve positioned reads.
type Positioned interface {
	OpenReaderAt(ctx context.Context) (ReadAtCloser, error)
	// ConcurrentReadAt reports whether a single handle returned by
	// OpenReaderAt may serve ReadAt calls from several goroutines at once.
	ConcurrentReadAt() bool
}

// Backend resolves real paths into resources.
type Backend interface {
	Lookup(ctx context.Context, name string) (Resource, error)
}

// Creator is implemented by backends able to create resources.
type Creator interface {
	MkdirAll(name string, perm fs.FileMode) error
	Create(ctx context.Context, name string, perm fs.FileMode) (Resource, io.WriteCloser, error)
}
