package format

import (
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/mholt/archives"
)

// tarDecoder reads tarballs, optionally compressed as a whole. Tar has no
// index, so every Open replays the stream from the start.
type tarDecoder struct {
	open streamFunc
}

func newTar(dec archives.Decompressor) archive.Factory {
	return func(c archive.Container) (archive.Decoder, error) {
		return &tarDecoder{open: decompressed(c, dec)}, nil
	}
}

func (d *tarDecoder) Entries(ctx context.Context) ([]archive.Header, error) {
	return listEntries(ctx, d.open, archives.Tar{}, fileHeader)
}

func (d *tarDecoder) Open(ctx context.Context, e *archive.Entry) (io.ReadCloser, error) {
	return extractEntry(ctx, d.open, archives.Tar{}, e)
}
