package archive

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/crazy-max/arcfs/pkg/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// File is an archive mounted as a directory. It owns a lazily built Entry
// Tree over its backing container, rebuilt when the container's
// modification time changes.
type File struct {
	path      string
	container vfs.Resource
	provider  Provider
	opts      Options
	logger    zerolog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	st    *state
}

// state is everything derived from one version of the container.
type state struct {
	modTime time.Time
	c       *container
	dec     Decoder
	tree    *Tree
	err     error

	sizes sync.Map
	data  *lru.Cache[string, []byte]
}

var _ vfs.Resource = (*File)(nil)

// New mounts container at the virtual path using provider p. Nothing is read
// until the tree is first needed.
func New(path string, container vfs.Resource, p Provider, opts Options) *File {
	opts = opts.withDefaults()
	return &File{
		path:      vfs.Clean(path),
		container: container,
		provider:  p,
		opts:      opts,
		logger:    opts.Logger.With().Str("archive", path).Str("format", p.Name).Logger(),
	}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Name() string {
	return f.container.Name()
}

// Provider returns the provider the archive was mounted with.
func (f *File) Provider() Provider {
	return f.provider
}

// Raw returns the backing container, giving access to the undecoded bytes.
func (f *File) Raw() vfs.Resource {
	return f.container
}

// Stat reports the archive root. Size is the raw size of the container.
func (f *File) Stat(ctx context.Context) (vfs.Info, error) {
	info, err := f.container.Stat(ctx)
	if err != nil {
		return vfs.Info{}, err
	}
	info.Kind = vfs.KindArchiveRoot
	return info, nil
}

// Open fails, an archive root is a directory. Use Raw for the container
// bytes.
func (f *File) Open(_ context.Context) (io.ReadCloser, error) {
	return nil, vfs.NewPathError("open", f.path, vfs.ErrIsDir)
}

func (f *File) List(ctx context.Context) ([]vfs.Resource, error) {
	st, err := f.state(ctx)
	if err != nil {
		return nil, err
	}
	return f.children(st, st.tree.Root()), nil
}

// Tree returns the entry tree, building it on first use.
func (f *File) Tree(ctx context.Context) (*Tree, error) {
	st, err := f.state(ctx)
	if err != nil {
		return nil, err
	}
	return st.tree, nil
}

// Lookup returns the resource at name relative to the archive root. The
// root itself is returned for an empty name.
func (f *File) Lookup(ctx context.Context, name string) (vfs.Resource, error) {
	st, err := f.state(ctx)
	if err != nil {
		return nil, err
	}
	name = CleanPath(name)
	if name == "" {
		return f, nil
	}
	e, ok := st.tree.Lookup(name)
	if !ok {
		return nil, vfs.NewPathError("lookup", vfs.Child(f.path, name), vfs.ErrNotFound)
	}
	return &entryResource{f: f, st: st, e: e}, nil
}

// Close releases resources held for the current container version.
func (f *File) Close() error {
	f.mu.Lock()
	st := f.st
	f.st = nil
	f.mu.Unlock()
	if st != nil {
		return st.close()
	}
	return nil
}

func (f *File) state(ctx context.Context) (*state, error) {
	info, err := f.container.Stat(ctx)
	if err != nil {
		return nil, vfs.NewPathError("mount", f.path, err)
	}

	f.mu.RLock()
	st := f.st
	f.mu.RUnlock()
	if st != nil && st.modTime.Equal(info.ModTime) {
		return st, st.err
	}

	v, err, shared := f.group.Do("build", func() (any, error) {
		f.mu.RLock()
		cur := f.st
		f.mu.RUnlock()
		if cur != nil && cur.modTime.Equal(info.ModTime) {
			return cur, nil
		}
		nst, err := f.build(ctx, info.ModTime)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		old := f.st
		f.st = nst
		f.mu.Unlock()
		if old != nil {
			f.logger.Debug().Time("mtime", info.ModTime).Msg("Container changed, tree rebuilt")
			_ = old.close()
		}
		return nst, nil
	})
	if err != nil {
		// the build belonged to a caller that gave up
		if shared && isContextErr(err) && ctx.Err() == nil {
			return f.state(ctx)
		}
		return nil, err
	}
	st = v.(*state)
	return st, st.err
}

// build parses the container. Failures are recorded in the returned state,
// except cancellation which leaves nothing behind.
func (f *File) build(ctx context.Context, modTime time.Time) (*state, error) {
	st := &state{modTime: modTime}
	if !f.provider.Available() {
		st.err = vfs.NewPathError("mount", f.path, vfs.Classify(vfs.ErrUnsupported, errors.Errorf("no decoder available for %s", f.provider.Name)))
		f.logger.Debug().Err(st.err).Msg("Format not available")
		return st, nil
	}

	start := time.Now()
	c := newContainer(f.container, f.opts)
	tree, dec, err := f.decode(ctx, c)
	if err != nil {
		_ = c.Close()
		if isContextErr(err) {
			return nil, err
		}
		st.err = vfs.NewPathError("mount", f.path, classifyBuild(err))
		f.logger.Debug().Err(err).Msg("Cannot build entry tree")
		return st, nil
	}

	st.c, st.dec, st.tree = c, dec, tree
	if f.opts.MaxEntryCache > 0 {
		if st.data, err = lru.New[string, []byte](f.opts.EntryCacheSize); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	f.logger.Debug().Int("entries", tree.Len()).Dur("took", time.Since(start)).Msg("Entry tree built")
	return st, nil
}

func (f *File) decode(ctx context.Context, c *container) (*Tree, Decoder, error) {
	dec, err := f.provider.New(c)
	if err != nil {
		return nil, nil, err
	}
	headers, err := dec.Entries(ctx)
	if err != nil {
		return nil, nil, err
	}
	tree, err := Build(headers)
	if err != nil {
		return nil, nil, err
	}
	return tree, dec, nil
}

func (f *File) children(st *state, e *Entry) []vfs.Resource {
	res := make([]vfs.Resource, 0, len(e.children))
	for _, c := range e.children {
		res = append(res, &entryResource{f: f, st: st, e: c})
	}
	return res
}

func (st *state) close() error {
	if st.c != nil {
		return st.c.Close()
	}
	return nil
}
