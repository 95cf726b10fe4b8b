package format

import (
	"context"
	"io"
	"io/fs"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// nameLocator addresses an entry of a sequential archive by name and by
// rank among entries sharing that name.
type nameLocator struct {
	Name       string
	Occurrence int
}

type streamFunc func(ctx context.Context) (io.ReadCloser, error)

// decompressed opens the raw container through dec, or as is when dec is nil.
func decompressed(c archive.Container, dec archives.Decompressor) streamFunc {
	return func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		if dec == nil {
			return rc, nil
		}
		dr, err := dec.OpenReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		return closeBoth{ReadCloser: dr, raw: rc}, nil
	}
}

// listEntries walks a sequential archive and records every entry.
func listEntries(ctx context.Context, open streamFunc, ex archives.Extractor, header func(f archives.FileInfo) archive.Header) ([]archive.Header, error) {
	rc, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var headers []archive.Header
	seen := make(map[string]int)
	err = ex.Extract(ctx, rc, func(_ context.Context, f archives.FileInfo) error {
		h := header(f)
		h.Locator = nameLocator{Name: f.NameInArchive, Occurrence: seen[f.NameInArchive]}
		seen[f.NameInArchive]++
		headers = append(headers, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// extractEntry replays a sequential archive up to the located entry and
// pipes its content. The walk stops as soon as the entry has been copied or
// the returned reader is closed.
func extractEntry(ctx context.Context, open streamFunc, ex archives.Extractor, e *archive.Entry) (io.ReadCloser, error) {
	loc, ok := e.Locator.(nameLocator)
	if !ok {
		return nil, errors.Errorf("invalid locator for entry %s", e.Path)
	}
	src, err := open(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	go func() {
		defer src.Close()
		var found bool
		var seen int
		err := ex.Extract(ctx, src, func(_ context.Context, f archives.FileInfo) error {
			if f.NameInArchive != loc.Name {
				return nil
			}
			if seen < loc.Occurrence {
				seen++
				return nil
			}
			found = true
			r, err := f.Open()
			if err != nil {
				return err
			}
			defer r.Close()
			if _, err = io.Copy(pw, r); err != nil {
				return err
			}
			return fs.SkipAll
		})
		if err == nil && !found {
			err = vfs.Classify(vfs.ErrTruncatedStream, errors.Errorf("entry %s not reached", loc.Name))
		}
		_ = pw.CloseWithError(err)
	}()

	return pipeReader{PipeReader: pr, cancel: cancel}, nil
}

type pipeReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (p pipeReader) Close() error {
	p.cancel()
	return p.PipeReader.Close()
}

type closeBoth struct {
	io.ReadCloser
	raw io.Closer
}

func (c closeBoth) Close() error {
	err := c.ReadCloser.Close()
	if rerr := c.raw.Close(); err == nil {
		err = rerr
	}
	return err
}

func fileHeader(f archives.FileInfo) archive.Header {
	return archive.Header{
		Name:    f.NameInArchive,
		Dir:     f.IsDir(),
		Size:    f.Size(),
		ModTime: f.ModTime(),
		Mode:    f.Mode(),
	}
}
