package format

import (
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// zipDecoder reads zip files through their central directory. Entries are
// located by index and opened directly at their offset.
type zipDecoder struct {
	c  archive.Container
	zr *zip.Reader
}

func newZip(c archive.Container) (archive.Decoder, error) {
	return &zipDecoder{c: c}, nil
}

func (d *zipDecoder) Entries(ctx context.Context) ([]archive.Header, error) {
	ra, size, err := d.c.ReaderAt(ctx)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, vfs.Classify(vfs.ErrCorruptArchive, err)
	}
	d.zr = zr

	headers := make([]archive.Header, 0, len(zr.File))
	for i, f := range zr.File {
		fi := f.FileInfo()
		headers = append(headers, archive.Header{
			Name:    f.Name,
			Dir:     fi.IsDir(),
			Size:    int64(f.UncompressedSize64),
			ModTime: f.Modified,
			Mode:    fi.Mode(),
			Locator: i,
		})
	}
	return headers, nil
}

func (d *zipDecoder) Open(_ context.Context, e *archive.Entry) (io.ReadCloser, error) {
	i, ok := e.Locator.(int)
	if !ok || d.zr == nil || i < 0 || i >= len(d.zr.File) {
		return nil, errors.Errorf("invalid locator for entry %s", e.Path)
	}
	rc, err := d.zr.File[i].Open()
	if errors.Is(err, zip.ErrAlgorithm) {
		return nil, vfs.Classify(vfs.ErrUnsupported, err)
	} else if err != nil {
		return nil, err
	}
	return zipReader{rc}, nil
}

// zipReader reports checksum mismatches as corruption rather than a short
// read.
type zipReader struct {
	io.ReadCloser
}

func (z zipReader) Read(p []byte) (int, error) {
	n, err := z.ReadCloser.Read(p)
	if errors.Is(err, zip.ErrChecksum) {
		err = vfs.Classify(vfs.ErrCorruptArchive, err)
	}
	return n, err
}
