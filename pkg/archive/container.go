package archive

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type container struct {
	res    vfs.Resource
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	ra      io.ReaderAt
	size    int64
	closers []func() error
	closed  bool
}

// ClosableContainer is a Container owning resources.
type ClosableContainer interface {
	Container
	io.Closer
}

// NewContainer exposes res to decoders. The returned container must be
// closed to release a positioned handle or spool file it may have opened.
func NewContainer(res vfs.Resource, opts Options) ClosableContainer {
	return newContainer(res, opts.withDefaults())
}

func newContainer(res vfs.Resource, opts Options) *container {
	return &container{
		res:    res,
		opts:   opts,
		logger: opts.Logger.With().Str("container", res.Path()).Logger(),
	}
}

func (c *container) Name() string {
	return c.res.Name()
}

func (c *container) Path() string {
	return c.res.Path()
}

func (c *container) Stat(ctx context.Context) (vfs.Info, error) {
	return c.res.Stat(ctx)
}

func (c *container) Open(ctx context.Context) (io.ReadCloser, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, c.errClosed()
	}
	return c.open(ctx)
}

func (c *container) open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := c.res.Open(ctx)
	if err != nil {
		return nil, err
	}
	return vfs.ReadCloserContext(ctx, rc), nil
}

func (c *container) ReaderAt(ctx context.Context) (io.ReaderAt, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, 0, c.errClosed()
	}
	if c.ra != nil {
		return c.ra, c.size, nil
	}

	if p, ok := c.res.(vfs.Positioned); ok {
		h, err := p.OpenReaderAt(ctx)
		if err != nil {
			return nil, 0, err
		}
		c.closers = append(c.closers, h.Close)
		if p.ConcurrentReadAt() {
			c.ra = h
		} else {
			c.logger.Trace().Msg("Serializing positioned reads")
			c.ra = &lockedReaderAt{r: h}
		}
		c.size = h.Size()
		return c.ra, c.size, nil
	}

	if err := c.spool(ctx); err != nil {
		return nil, 0, err
	}
	return c.ra, c.size, nil
}

// spool copies a container lacking positioned reads into memory, or into a
// temp file once it grows past SpoolMemory.
func (c *container) spool(ctx context.Context) error {
	rc, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	buf, err := io.ReadAll(io.LimitReader(rc, c.opts.SpoolMemory+1))
	if err != nil {
		return classifyRead(err)
	}
	if int64(len(buf)) <= c.opts.SpoolMemory {
		c.logger.Debug().Int("size", len(buf)).Msg("Container spooled in memory")
		c.ra, c.size = bytes.NewReader(buf), int64(len(buf))
		return nil
	}

	f, err := afero.TempFile(c.opts.SpoolFs, c.opts.SpoolDir, "arcfs-spool-*")
	if err != nil {
		return errors.Wrap(err, "cannot create spool file")
	}
	name := f.Name()
	cleanup := func() error {
		_ = f.Close()
		return c.opts.SpoolFs.Remove(name)
	}
	n, err := io.Copy(f, io.MultiReader(bytes.NewReader(buf), rc))
	if err != nil {
		_ = cleanup()
		return classifyRead(err)
	}
	c.closers = append(c.closers, cleanup)
	c.logger.Debug().Str("file", name).Int64("size", n).Msg("Container spooled to disk")

	if _, ok := f.(*os.File); ok {
		c.ra = f
	} else {
		c.ra = &lockedReaderAt{r: f}
	}
	c.size = n
	return nil
}

// Close releases the positioned handle or spool file. The container cannot
// be read afterwards.
func (c *container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	c.ra = nil
	return first
}

func (c *container) errClosed() error {
	return vfs.NewPathError("read", c.res.Path(), fs.ErrClosed)
}

// lockedReaderAt serializes ReadAt calls on a handle that keeps a shared
// cursor.
type lockedReaderAt struct {
	mu sync.Mutex
	r  io.ReaderAt
}

func (l *lockedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.ReadAt(p, off)
}
