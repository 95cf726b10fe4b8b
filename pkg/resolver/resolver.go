// Package resolver composes virtual paths crossing archive boundaries into
// resources.
package resolver

import (
	"context"
	"io"
	"strings"

	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultCacheSize is the number of mounted archives kept by default.
const DefaultCacheSize = 128

// Options holds resolver options
type Options struct {
	Logger zerolog.Logger
	// Registry used to recognize archives. Defaults to archive.Default.
	Registry *archive.Registry
	// Archive options given to every mounted archive. Its logger is
	// replaced by Logger.
	Archive archive.Options
	// CacheSize is the number of mounted archives kept open.
	CacheSize int
	// OnMount is called with the path of every backend file mounted as an
	// archive. Archives nested in other archives are not reported.
	OnMount func(name string)
}

// Resolver maps virtual paths to resources. A path segment naming a regular
// file the registry recognizes is mounted as a directory and the rest of the
// path is looked up inside it.
type Resolver struct {
	backend  vfs.Backend
	registry *archive.Registry
	opts     Options
	logger   zerolog.Logger
	mounts   *lru.Cache[string, *archive.File]
}

type mode int

const (
	// modeMounted resolves a path naming an archive to its root.
	modeMounted mode = iota
	// modeRaw resolves a path naming an archive to its container.
	modeRaw
)

// New creates a resolver over backend.
func New(backend vfs.Backend, opts Options) (*Resolver, error) {
	if opts.Registry == nil {
		opts.Registry = archive.Default
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	opts.Archive.Logger = opts.Logger

	r := &Resolver{
		backend:  backend,
		registry: opts.Registry,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "resolver").Logger(),
	}
	mounts, err := lru.NewWithEvict[string, *archive.File](opts.CacheSize, r.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create mount cache")
	}
	r.mounts = mounts
	return r, nil
}

func (r *Resolver) onEvict(key string, f *archive.File) {
	r.logger.Debug().Str("archive", key).Msg("Unmounting archive")
	if err := f.Close(); err != nil {
		r.logger.Warn().Err(err).Str("archive", key).Msg("Cannot close archive")
	}
}

// Resolve returns the resource at name. A name ending on an archive resolves
// to its root directory.
func (r *Resolver) Resolve(ctx context.Context, name string) (vfs.Resource, error) {
	return r.resolve(ctx, name, modeMounted)
}

// AsRawResource returns the resource at name without mounting its last
// segment, giving access to the bytes of an archive container. Archives
// crossed before the last segment are still mounted.
func (r *Resolver) AsRawResource(ctx context.Context, name string) (vfs.Resource, error) {
	return r.resolve(ctx, name, modeRaw)
}

// AsMountedDirectory returns name as a directory. Directories are returned
// as is, regular files are mounted even if their name carries no archive
// suffix, in which case the format is identified from the content.
func (r *Resolver) AsMountedDirectory(ctx context.Context, name string) (vfs.Resource, error) {
	res, err := r.resolve(ctx, name, modeRaw)
	if err != nil {
		return nil, err
	}
	info, err := res.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if info.Kind.IsDir() {
		return res, nil
	}
	if f, ok := r.cached(res); ok {
		return f, nil
	}

	rc, err := res.Open(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.registry.Detect(ctx, res.Name(), rc)
	_ = rc.Close()
	if err != nil {
		return nil, vfs.NewPathError("mount", res.Path(), err)
	}
	return r.mount(res, p), nil
}

// List returns the children of the directory or archive at name.
func (r *Resolver) List(ctx context.Context, name string) ([]vfs.Resource, error) {
	res, err := r.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return res.List(ctx)
}

// Open returns the content of the regular file at name.
func (r *Resolver) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	res, err := r.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return res.Open(ctx)
}

// Stat returns the metadata of the resource at name.
func (r *Resolver) Stat(ctx context.Context, name string) (vfs.Info, error) {
	res, err := r.Resolve(ctx, name)
	if err != nil {
		return vfs.Info{}, err
	}
	return res.Stat(ctx)
}

// Exists reports whether name resolves. Only vfs.ErrNotFound counts as
// absence, other failures such as a corrupt archive on the way are returned.
func (r *Resolver) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Resolve(ctx, name)
	if errors.Is(err, vfs.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate unmounts the archive at name and every archive mounted below
// it. It returns the number of archives unmounted.
func (r *Resolver) Invalidate(name string) int {
	name = vfs.Clean(name)
	var n int
	for _, key := range r.mounts.Keys() {
		if key == name || strings.HasPrefix(key, name+"/") {
			if r.mounts.Remove(key) {
				n++
			}
		}
	}
	if n > 0 {
		r.logger.Debug().Str("path", name).Int("count", n).Msg("Mounts invalidated")
	}
	return n
}

// Mounted returns the virtual paths of the archives currently mounted.
func (r *Resolver) Mounted() []string {
	return r.mounts.Keys()
}

// Close unmounts every archive.
func (r *Resolver) Close() error {
	r.mounts.Purge()
	return nil
}

func (r *Resolver) resolve(ctx context.Context, name string, m mode) (vfs.Resource, error) {
	prefix, segs := vfs.Split(name)
	for i, seg := range segs {
		last := i == len(segs)-1
		if last && m == modeRaw {
			break
		}
		p, ok := r.registry.Resolve(seg)
		if !ok {
			continue
		}
		res, err := r.backend.Lookup(ctx, vfs.Join(prefix, segs[:i+1]...))
		if err != nil {
			return nil, err
		}
		f, ok, err := r.mountFile(ctx, res, p)
		if err != nil {
			return nil, err
		} else if !ok {
			continue
		}
		return r.resolveIn(ctx, f, segs[i+1:], m)
	}
	return r.backend.Lookup(ctx, vfs.Join(prefix, segs...))
}

// resolveIn resolves segs relative to the root of f.
func (r *Resolver) resolveIn(ctx context.Context, f *archive.File, segs []string, m mode) (vfs.Resource, error) {
	for i, seg := range segs {
		last := i == len(segs)-1
		if last && m == modeRaw {
			break
		}
		p, ok := r.registry.Resolve(seg)
		if !ok {
			continue
		}
		res, err := f.Lookup(ctx, strings.Join(segs[:i+1], "/"))
		if err != nil {
			return nil, err
		}
		nested, ok, err := r.mountFile(ctx, res, p)
		if err != nil {
			return nil, err
		} else if !ok {
			continue
		}
		return r.resolveIn(ctx, nested, segs[i+1:], m)
	}
	return f.Lookup(ctx, strings.Join(segs, "/"))
}

// mountFile mounts res if it is a regular file. A directory carrying an
// archive suffix is left alone.
func (r *Resolver) mountFile(ctx context.Context, res vfs.Resource, p archive.Provider) (*archive.File, bool, error) {
	info, err := res.Stat(ctx)
	if err != nil {
		return nil, false, err
	}
	if info.Kind != vfs.KindRegular {
		return nil, false, nil
	}
	if f, ok := r.cached(res); ok {
		return f, true, nil
	}
	return r.mount(res, p), true, nil
}

// entryBacked is implemented by resources living inside an archive.
type entryBacked interface {
	Entry() *archive.Entry
}

// cached returns the mount of res if it is still backed by the same
// container. Archives nested in a rebuilt parent get a fresh mount.
func (r *Resolver) cached(res vfs.Resource) (*archive.File, bool) {
	f, ok := r.mounts.Get(res.Path())
	if !ok {
		return nil, false
	}
	if eb, ok := res.(entryBacked); ok {
		if prev, ok := f.Raw().(entryBacked); !ok || prev.Entry() != eb.Entry() {
			r.mounts.Remove(res.Path())
			return nil, false
		}
	}
	return f, true
}

func (r *Resolver) mount(res vfs.Resource, p archive.Provider) *archive.File {
	f := archive.New(res.Path(), res, p, r.opts.Archive)
	if prev, ok, _ := r.mounts.PeekOrAdd(res.Path(), f); ok {
		return prev
	}
	r.logger.Debug().Str("archive", res.Path()).Str("format", p.Name).Msg("Archive mounted")
	if _, nested := res.(entryBacked); !nested && r.opts.OnMount != nil {
		r.opts.OnMount(res.Path())
	}
	return f
}
