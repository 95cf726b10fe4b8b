package archive

import (
	"bytes"
	"context"
	"io"

	"github.com/crazy-max/arcfs/pkg/vfs"
)

// entryResource exposes an entry of a built tree. It keeps the state it was
// created from, so a rebuilt tree does not change what it points to.
type entryResource struct {
	f  *File
	st *state
	e  *Entry
}

var _ vfs.Resource = (*entryResource)(nil)

func (r *entryResource) Path() string {
	return vfs.Child(r.f.path, r.e.Path)
}

func (r *entryResource) Name() string {
	return r.e.Name
}

// Entry returns the tree node.
func (r *entryResource) Entry() *Entry {
	return r.e
}

func (r *entryResource) Stat(_ context.Context) (vfs.Info, error) {
	info := vfs.Info{
		Name:    r.e.Name,
		Kind:    r.e.Kind(),
		Size:    r.e.Size,
		ModTime: r.e.ModTime,
		Mode:    r.e.Mode,
	}
	if !r.e.Dir && info.Size < 0 {
		if n, ok := r.st.sizes.Load(r.e.Path); ok {
			info.Size = n.(int64)
		}
	}
	return info, nil
}

func (r *entryResource) Open(ctx context.Context) (io.ReadCloser, error) {
	if r.e.Dir {
		return nil, vfs.NewPathError("open", r.Path(), vfs.ErrIsDir)
	}
	if r.st.data != nil {
		if b, ok := r.st.data.Get(r.e.Path); ok {
			return io.NopCloser(bytes.NewReader(b)), nil
		}
	}

	rc, err := r.st.dec.Open(ctx, r.e)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return nil, vfs.NewPathError("open", r.Path(), classifyRead(err))
	}

	er := &entryReader{
		rc:       vfs.ReadCloserContext(ctx, rc),
		path:     r.Path(),
		expected: r.e.Size,
		limit:    r.f.opts.MaxEntryCache,
		onEOF:    r.complete,
	}
	if r.st.data != nil && r.e.Size <= r.f.opts.MaxEntryCache {
		er.capture = new(bytes.Buffer)
	}
	return er, nil
}

// complete records what a full read of the entry taught us.
func (r *entryResource) complete(n int64, data []byte) {
	if r.e.Size < 0 {
		r.st.sizes.Store(r.e.Path, n)
	}
	if data != nil && r.st.data != nil {
		r.st.data.Add(r.e.Path, data)
	}
}

func (r *entryResource) List(_ context.Context) ([]vfs.Resource, error) {
	if !r.e.Dir {
		return nil, vfs.NewPathError("list", r.Path(), vfs.ErrNotDir)
	}
	return r.f.children(r.st, r.e), nil
}
