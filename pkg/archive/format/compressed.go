package format

import (
	"bytes"
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// sniffSize is enough decoded bytes to recognize a tar header.
const sniffSize = 1024

// compressedDecoder reads single-stream compressed files. The tree holds
// one entry named after the container without its suffix, unless the
// payload turns out to be a tarball in which case the tarball is listed.
type compressedDecoder struct {
	c    archive.Container
	p    archive.Provider
	open streamFunc
	tar  *tarDecoder
}

func newCompressed(dec archives.Decompressor) func(p archive.Provider) archive.Factory {
	return func(p archive.Provider) archive.Factory {
		return func(c archive.Container) (archive.Decoder, error) {
			return &compressedDecoder{
				c:    c,
				p:    p,
				open: decompressed(c, dec),
			}, nil
		}
	}
}

func (d *compressedDecoder) Entries(ctx context.Context) ([]archive.Header, error) {
	rc, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	head, err := readHead(rc, sniffSize)
	_ = rc.Close()

	// A stream that decodes at all gets its entry. Damage past the head is
	// reported by the read that reaches it.
	var damaged bool
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, io.ErrUnexpectedEOF), len(head) > 0:
			damaged = true
		default:
			return nil, vfs.Classify(vfs.ErrCorruptArchive, err)
		}
	}

	if !damaged && len(head) > 0 {
		if mr, err := (archives.Tar{}).Match(ctx, "", bytes.NewReader(head)); err == nil && mr.ByStream {
			d.tar = &tarDecoder{open: d.open}
			return d.tar.Entries(ctx)
		}
	}

	h := archive.Header{
		Name: d.p.TrimSuffix(d.c.Name()),
		Size: vfs.SizeUnknown,
		Mode: 0o644,
	}
	if !damaged && len(head) < sniffSize {
		h.Size = int64(len(head))
	}
	if info, err := d.c.Stat(ctx); err == nil {
		h.ModTime = info.ModTime
		h.Mode = info.Mode.Perm()
	}
	return []archive.Header{h}, nil
}

func (d *compressedDecoder) Open(ctx context.Context, e *archive.Entry) (io.ReadCloser, error) {
	if d.tar != nil {
		return d.tar.Open(ctx, e)
	}
	return d.open(ctx)
}

// readHead reads up to n bytes, stopping early at the end of the stream.
// Bytes decoded before an error are returned along with it.
func readHead(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	var off int
	for off < n {
		m, err := r.Read(buf[off:])
		off += m
		if err == io.EOF {
			break
		} else if err != nil {
			return buf[:off], err
		}
	}
	return buf[:off], nil
}
