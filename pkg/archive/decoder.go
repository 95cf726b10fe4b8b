package archive

import (
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/vfs"
)

// Decoder holds the format specific logic of an archive.
type Decoder interface {
	// Entries enumerates the archive in the order of its own index. It is
	// called once per tree build; a malformed header must fail here.
	Entries(ctx context.Context) ([]Header, error)

	// Open returns a stream of the decoded bytes of e starting at its first
	// byte. Streams of distinct entries, or of the same entry opened twice,
	// must not share a cursor.
	Open(ctx context.Context, e *Entry) (io.ReadCloser, error)
}

// Container gives decoders access to the bytes of the archive.
type Container interface {
	// Name is the base name of the container, used to derive synthetic
	// entry names.
	Name() string
	// Path is the virtual path of the container.
	Path() string
	// Stat returns the metadata of the container itself.
	Stat(ctx context.Context) (vfs.Info, error)
	// Open returns a fresh sequential stream of the raw container bytes.
	Open(ctx context.Context) (io.ReadCloser, error)
	// ReaderAt returns a positioned reader over the raw container bytes and
	// its size. The reader is shared and safe for concurrent use.
	ReaderAt(ctx context.Context) (io.ReaderAt, int64, error)
}
