package vfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// FsBackend implements Backend on top of an afero filesystem.
type FsBackend struct {
	fs         afero.Fs
	concurrent bool
}

// FsOptions holds filesystem backend options
type FsOptions struct {
	// ConcurrentReadAt declares that file handles of the underlying
	// filesystem support ReadAt from several goroutines at once (pread
	// semantics). afero.MemMapFs handles do not.
	ConcurrentReadAt bool
}

// NewFsBackend creates a backend reading from fs.
func NewFsBackend(fs afero.Fs, opts FsOptions) *FsBackend {
	return &FsBackend{
		fs:         fs,
		concurrent: opts.ConcurrentReadAt,
	}
}

// NewOsBackend creates a backend on the local disk. If root is not empty,
// every path is resolved relative to it.
func NewOsBackend(root string) *FsBackend {
	var fs afero.Fs = afero.NewOsFs()
	if len(root) > 0 {
		fs = afero.NewBasePathFs(fs, root)
	}
	return NewFsBackend(fs, FsOptions{ConcurrentReadAt: true})
}

// Fs returns the underlying filesystem.
func (b *FsBackend) Fs() afero.Fs {
	return b.fs
}

// Lookup implements Backend.
func (b *FsBackend) Lookup(_ context.Context, name string) (Resource, error) {
	name = Clean(name)
	if _, err := b.fs.Stat(filepath.FromSlash(name)); err != nil {
		return nil, b.pathError("lookup", name, err)
	}
	return &FsResource{backend: b, path: name}, nil
}

// MkdirAll creates a directory and its parents.
func (b *FsBackend) MkdirAll(name string, perm os.FileMode) error {
	return b.fs.MkdirAll(filepath.FromSlash(Clean(name)), perm)
}

// Create creates or truncates a file and returns the resource and a writer.
func (b *FsBackend) Create(_ context.Context, name string, perm os.FileMode) (Resource, io.WriteCloser, error) {
	name = Clean(name)
	f, err := b.fs.OpenFile(filepath.FromSlash(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return nil, nil, b.pathError("create", name, err)
	}
	return &FsResource{backend: b, path: name}, f, nil
}

func (b *FsBackend) pathError(op, name string, err error) error {
	if os.IsNotExist(err) {
		return NewPathError(op, name, Classify(ErrNotFound, err))
	}
	return NewPathError(op, name, err)
}

// FsResource is a file or directory of an FsBackend.
type FsResource struct {
	backend *FsBackend
	path    string
}

var (
	_ Resource   = (*FsResource)(nil)
	_ Writable   = (*FsResource)(nil)
	_ Positioned = (*FsResource)(nil)
	_ Creator    = (*FsBackend)(nil)
)

func (r *FsResource) Path() string {
	return r.path
}

func (r *FsResource) Name() string {
	return filepath.Base(filepath.FromSlash(r.path))
}

func (r *FsResource) osPath() string {
	return filepath.FromSlash(r.path)
}

// Stat always queries the filesystem so that changes of the underlying file
// are observed.
func (r *FsResource) Stat(_ context.Context) (Info, error) {
	fi, err := r.backend.fs.Stat(r.osPath())
	if err != nil {
		return Info{}, r.backend.pathError("stat", r.path, err)
	}
	return fileInfo(fi), nil
}

func (r *FsResource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := r.backend.fs.Open(r.osPath())
	if err != nil {
		return nil, r.backend.pathError("open", r.path, err)
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		_ = f.Close()
		return nil, NewPathError("open", r.path, ErrIsDir)
	}
	return f, nil
}

func (r *FsResource) List(_ context.Context) ([]Resource, error) {
	fi, err := r.backend.fs.Stat(r.osPath())
	if err != nil {
		return nil, r.backend.pathError("list", r.path, err)
	}
	if !fi.IsDir() {
		return nil, NewPathError("list", r.path, ErrNotDir)
	}
	infos, err := afero.ReadDir(r.backend.fs, r.osPath())
	if err != nil {
		return nil, r.backend.pathError("list", r.path, err)
	}
	children := make([]Resource, 0, len(infos))
	for _, info := range infos {
		children = append(children, &FsResource{
			backend: r.backend,
			path:    Child(r.path, info.Name()),
		})
	}
	return children, nil
}

// OpenWrite truncates the file and opens it for writing.
func (r *FsResource) OpenWrite(_ context.Context) (io.WriteCloser, error) {
	f, err := r.backend.fs.OpenFile(r.osPath(), os.O_TRUNC|os.O_WRONLY, 0)
	if err != nil {
		return nil, r.backend.pathError("openwrite", r.path, err)
	}
	return f, nil
}

func (r *FsResource) OpenReaderAt(_ context.Context) (ReadAtCloser, error) {
	f, err := r.backend.fs.Open(r.osPath())
	if err != nil {
		return nil, r.backend.pathError("open", r.path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, r.backend.pathError("stat", r.path, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, NewPathError("open", r.path, ErrIsDir)
	}
	return &sizedFile{File: f, size: fi.Size()}, nil
}

func (r *FsResource) ConcurrentReadAt() bool {
	return r.backend.concurrent
}

type sizedFile struct {
	afero.File
	size int64
}

func (f *sizedFile) Size() int64 {
	return f.size
}

func fileInfo(fi os.FileInfo) Info {
	info := Info{
		Name:    fi.Name(),
		Kind:    KindRegular,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode(),
	}
	if fi.IsDir() {
		info.Kind = KindDirectory
		info.Size = 0
	}
	return info
}

// ReadAll reads the whole content of a resource.
func ReadAll(ctx context.Context, r Resource) ([]byte, error) {
	rc, err := r.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", r.Path())
	}
	return b, nil
}
