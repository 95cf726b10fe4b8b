package format

import (
	"context"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
)

type sevenZipDecoder struct {
	c archive.Container
	r *sevenzip.Reader
}

func newSevenZip(c archive.Container) (archive.Decoder, error) {
	return &sevenZipDecoder{c: c}, nil
}

func (d *sevenZipDecoder) Entries(ctx context.Context) ([]archive.Header, error) {
	ra, size, err := d.c.ReaderAt(ctx)
	if err != nil {
		return nil, err
	}
	r, err := sevenzip.NewReader(ra, size)
	if err != nil {
		return nil, vfs.Classify(vfs.ErrCorruptArchive, err)
	}
	d.r = r

	headers := make([]archive.Header, 0, len(r.File))
	for i, f := range r.File {
		fi := f.FileInfo()
		headers = append(headers, archive.Header{
			Name:    f.Name,
			Dir:     fi.IsDir(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			Mode:    fi.Mode(),
			Locator: i,
		})
	}
	return headers, nil
}

func (d *sevenZipDecoder) Open(_ context.Context, e *archive.Entry) (io.ReadCloser, error) {
	i, ok := e.Locator.(int)
	if !ok || d.r == nil || i < 0 || i >= len(d.r.File) {
		return nil, errors.Errorf("invalid locator for entry %s", e.Path)
	}
	return d.r.File[i].Open()
}
