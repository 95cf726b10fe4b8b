package format

import (
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/mholt/archives"
	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
)

// rarDecoder reads single volume, unencrypted rar archives.
type rarDecoder struct {
	open streamFunc
}

func newRar(c archive.Container) (archive.Decoder, error) {
	return &rarDecoder{open: decompressed(c, nil)}, nil
}

func (d *rarDecoder) Entries(ctx context.Context) ([]archive.Header, error) {
	headers, err := listEntries(ctx, d.open, archives.Rar{}, rarHeader)
	if err != nil {
		return nil, rarError(err)
	}
	return headers, nil
}

func (d *rarDecoder) Open(ctx context.Context, e *archive.Entry) (io.ReadCloser, error) {
	rc, err := extractEntry(ctx, d.open, archives.Rar{}, e)
	if err != nil {
		return nil, rarError(err)
	}
	return rarReader{rc}, nil
}

func rarHeader(f archives.FileInfo) archive.Header {
	h := fileHeader(f)
	if fh, ok := f.Header.(*rardecode.FileHeader); ok && fh.UnKnownSize {
		h.Size = vfs.SizeUnknown
	}
	return h
}

type rarReader struct {
	io.ReadCloser
}

func (r rarReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = rarError(err)
	}
	return n, err
}

func rarError(err error) error {
	switch {
	case errors.Is(err, rardecode.ErrArchiveEncrypted),
		errors.Is(err, rardecode.ErrArchivedFileEncrypted),
		errors.Is(err, rardecode.ErrUnknownDecoder):
		return vfs.Classify(vfs.ErrUnsupported, err)
	case errors.Is(err, rardecode.ErrCorruptBlockHeader),
		errors.Is(err, rardecode.ErrCorruptFileHeader),
		errors.Is(err, rardecode.ErrBadHeaderCRC):
		return vfs.Classify(vfs.ErrCorruptArchive, err)
	}
	return err
}
