package extractor

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync/atomic"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files written at once by default.
const DefaultConcurrency = 4

// Opts holds extract options
type Opts struct {
	Logger   zerolog.Logger
	Includes []string
	// Concurrency is the number of files written at once.
	Concurrency int
}

// Stats sums up an extraction
type Stats struct {
	Dirs  int64
	Files int64
	Bytes int64
}

// Extract copies src, a directory, an archive root or a single file, below
// dest on target. Archives found inside src are copied as files.
func Extract(ctx context.Context, src vfs.Resource, target vfs.Creator, dest string, opts Opts) (Stats, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	var includes []string
	for _, inc := range opts.Includes {
		inc = strings.Trim(inc, "/")
		if len(inc) > 0 {
			includes = append(includes, inc)
		}
	}

	x := &extraction{
		target:   target,
		logger:   opts.Logger,
		includes: includes,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	x.g = g

	info, err := src.Stat(ctx)
	if err != nil {
		return Stats{}, err
	}
	if info.Kind.IsDir() {
		if err = target.MkdirAll(dest, 0o755); err != nil {
			return Stats{}, errors.Wrapf(err, "cannot create %s", dest)
		}
		err = x.walk(gctx, src, "", dest)
	} else {
		err = target.MkdirAll(dest, 0o755)
		if err == nil {
			x.copyFile(gctx, src, info, vfs.Child(dest, src.Name()))
		}
	}
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return Stats{
		Dirs:  x.dirs.Load(),
		Files: x.files.Load(),
		Bytes: x.bytes.Load(),
	}, err
}

type extraction struct {
	target   vfs.Creator
	logger   zerolog.Logger
	includes []string
	g        *errgroup.Group

	dirs  atomic.Int64
	files atomic.Int64
	bytes atomic.Int64
}

func (x *extraction) walk(ctx context.Context, dir vfs.Resource, rel string, dest string) error {
	children, err := dir.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err = ctx.Err(); err != nil {
			return err
		}
		name := path.Join(rel, c.Name())
		info, err := c.Stat(ctx)
		if err != nil {
			return err
		}
		if info.Kind.IsDir() {
			if !dirIsNeeded(x.includes, name) {
				continue
			}
			x.logger.Trace().Msgf("Extracting %s", name)
			if fileIsIncluded(x.includes, name) {
				if err = x.target.MkdirAll(vfs.Child(dest, name), dirMode(info.Mode)); err != nil {
					return errors.Wrapf(err, "cannot create %s", name)
				}
				x.dirs.Add(1)
			}
			if err = x.walk(ctx, c, name, dest); err != nil {
				return err
			}
			continue
		}
		if !fileIsIncluded(x.includes, name) {
			continue
		}
		if err = x.target.MkdirAll(vfs.Child(dest, path.Dir(name)), 0o755); err != nil {
			return errors.Wrapf(err, "cannot create parent of %s", name)
		}
		x.logger.Debug().Msgf("Extracting %s", name)
		x.copyFile(ctx, c, info, vfs.Child(dest, name))
	}
	return nil
}

func (x *extraction) copyFile(ctx context.Context, src vfs.Resource, info vfs.Info, dest string) {
	x.g.Go(func() error {
		n, err := writeFile(ctx, x.target, src, dest, fileMode(info.Mode))
		if err != nil {
			return errors.Wrapf(err, "cannot extract %s", src.Path())
		}
		x.files.Add(1)
		x.bytes.Add(n)
		return nil
	})
}

func fileIsIncluded(filenameList []string, filename string) bool {
	// include all files if there is no specific list
	if len(filenameList) == 0 {
		return true
	}
	for _, fn := range filenameList {
		// exact matches are of course included
		if filename == fn {
			return true
		}
		// also consider the file included if its parent folder/path is in the list
		if strings.HasPrefix(filename, fn+"/") {
			return true
		}
	}
	return false
}

// dirIsNeeded returns true if dir is included or leads to an included path.
func dirIsNeeded(filenameList []string, dir string) bool {
	if fileIsIncluded(filenameList, dir) {
		return true
	}
	for _, fn := range filenameList {
		if strings.HasPrefix(fn, dir+"/") {
			return true
		}
	}
	return false
}

func writeFile(ctx context.Context, target vfs.Creator, src vfs.Resource, dest string, perm fs.FileMode) (int64, error) {
	r, err := src.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	_, w, err := target.Create(ctx, dest, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, vfs.ReaderContext(ctx, r))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func fileMode(m fs.FileMode) fs.FileMode {
	if m.Perm() == 0 {
		return 0o644
	}
	return m.Perm()
}

func dirMode(m fs.FileMode) fs.FileMode {
	if m.Perm() == 0 {
		return 0o755
	}
	return m.Perm() | 0o700
}
