package archive

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// lineDecoder reads a toy format made of "name:content" lines. A name ending
// with a slash is a directory and a "!" line is a broken header.
type lineDecoder struct {
	c     Container
	data  map[string][]byte
	opens *atomic.Int32
}

type counters struct {
	builds atomic.Int32
	opens  atomic.Int32
}

func lineProvider(cnt *counters) Provider {
	return Provider{
		Name:     "lines",
		Suffixes: []string{".lines"},
		New: func(c Container) (Decoder, error) {
			cnt.builds.Add(1)
			return &lineDecoder{c: c, opens: &cnt.opens}, nil
		},
	}
}

func (d *lineDecoder) Entries(ctx context.Context) ([]Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := d.c.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	d.data = make(map[string][]byte)
	var headers []Header
	s := bufio.NewScanner(rc)
	for i := 0; s.Scan(); i++ {
		line := s.Text()
		if line == "!" {
			return nil, errors.Errorf("bad header at line %d", i)
		}
		name, content, _ := strings.Cut(line, ":")
		d.data[name] = []byte(content)
		headers = append(headers, Header{
			Name:    name,
			Dir:     strings.HasSuffix(name, "/"),
			Size:    int64(len(content)),
			Locator: name,
		})
	}
	return headers, s.Err()
}

func (d *lineDecoder) Open(_ context.Context, e *Entry) (io.ReadCloser, error) {
	d.opens.Add(1)
	return io.NopCloser(bytes.NewReader(d.data[e.Locator.(string)])), nil
}

func newLinesFile(t *testing.T, content string, opts Options) (*File, afero.Fs, *counters) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "test.lines", []byte(content), 0o644))
	res, err := vfs.NewFsBackend(fs, vfs.FsOptions{}).Lookup(context.Background(), "test.lines")
	require.NoError(t, err)

	cnt := &counters{}
	opts.Logger = zerolog.Nop()
	f := New("test.lines", res, lineProvider(cnt), opts)
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f, fs, cnt
}

func TestFileLazyBuild(t *testing.T) {
	f, _, cnt := newLinesFile(t, "a.txt:hello\nsub/b.txt:world\n", Options{})
	assert.Equal(t, int32(0), cnt.builds.Load())

	children, err := f.List(context.Background())
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "test.lines/a.txt", children[0].Path())
	assert.Equal(t, "test.lines/sub", children[1].Path())
	assert.Equal(t, int32(1), cnt.builds.Load())

	_, err = f.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), cnt.builds.Load())
}

func TestFileLookup(t *testing.T) {
	ctx := context.Background()
	f, _, _ := newLinesFile(t, "sub/b.txt:world\n", Options{})

	root, err := f.Lookup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, f, root)

	_, err = f.Open(ctx)
	assert.ErrorIs(t, err, vfs.ErrIsDir)

	_, err = f.Lookup(ctx, "sub/missing")
	assert.ErrorIs(t, err, vfs.ErrNotFound)
	var pe *vfs.PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "test.lines/sub/missing", pe.Path)

	sub, err := f.Lookup(ctx, "sub")
	require.NoError(t, err)
	_, err = sub.Open(ctx)
	assert.ErrorIs(t, err, vfs.ErrIsDir)

	b, err := f.Lookup(ctx, "sub/b.txt")
	require.NoError(t, err)
	_, err = b.List(ctx)
	assert.ErrorIs(t, err, vfs.ErrNotDir)
}

func TestFileConcurrentReads(t *testing.T) {
	ctx := context.Background()
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("f")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(strings.Repeat("x", i))
		sb.WriteString(":")
		sb.WriteString(strings.Repeat("y", i))
		sb.WriteString("\n")
	}
	f, _, cnt := newLinesFile(t, sb.String(), Options{MaxEntryCache: -1})

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			name := "f" + string(rune('a'+i%26)) + strings.Repeat("x", i)
			res, err := f.Lookup(gctx, name)
			if err != nil {
				return err
			}
			b, err := vfs.ReadAll(gctx, res)
			if err != nil {
				return err
			}
			if string(b) != strings.Repeat("y", i) {
				return errors.Errorf("unexpected content for %s", name)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), cnt.builds.Load())
	assert.Equal(t, int32(50), cnt.opens.Load())
}

func TestFileEntryCache(t *testing.T) {
	ctx := context.Background()
	f, _, cnt := newLinesFile(t, "a.txt:hello\n", Options{})

	for i := 0; i < 3; i++ {
		res, err := f.Lookup(ctx, "a.txt")
		require.NoError(t, err)
		b, err := vfs.ReadAll(ctx, res)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))
	}
	assert.Equal(t, int32(1), cnt.opens.Load())
}

func TestFileRebuildOnChange(t *testing.T) {
	ctx := context.Background()
	f, fs, cnt := newLinesFile(t, "old.txt:1\n", Options{})

	old, err := f.Lookup(ctx, "old.txt")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "test.lines", []byte("new.txt:2\n"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, fs.Chtimes("test.lines", later, later))

	_, err = f.Lookup(ctx, "old.txt")
	assert.ErrorIs(t, err, vfs.ErrNotFound)
	res, err := f.Lookup(ctx, "new.txt")
	require.NoError(t, err)
	b, err := vfs.ReadAll(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))
	assert.Equal(t, int32(2), cnt.builds.Load())

	// resources handed out earlier keep their own view
	assert.Equal(t, "old.txt", old.Name())
}

func TestFileBuildErrorCached(t *testing.T) {
	ctx := context.Background()
	f, _, cnt := newLinesFile(t, "a:1\n!\n", Options{})

	_, err := f.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, vfs.ErrCorruptArchive)
	_, err = f.Lookup(ctx, "a")
	assert.ErrorIs(t, err, vfs.ErrCorruptArchive)
	assert.Equal(t, int32(1), cnt.builds.Load())
}

func TestFileCanceledBuildNotCached(t *testing.T) {
	f, _, cnt := newLinesFile(t, "a:1\n", Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = f.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), cnt.builds.Load())
}

// gateDecoder blocks the first build until its context is done.
type gateDecoder struct {
	first   bool
	started chan struct{}
}

func (d *gateDecoder) Entries(ctx context.Context) ([]Header, error) {
	if d.first {
		close(d.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []Header{{Name: "a.txt", Locator: "a.txt"}}, nil
}

func (d *gateDecoder) Open(_ context.Context, _ *Entry) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func TestFileSharedBuildCanceled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "test.gate", []byte("x"), 0o644))
	res, err := vfs.NewFsBackend(fs, vfs.FsOptions{}).Lookup(context.Background(), "test.gate")
	require.NoError(t, err)

	var builds atomic.Int32
	started := make(chan struct{})
	f := New("test.gate", res, Provider{
		Name:     "gate",
		Suffixes: []string{".gate"},
		New: func(Container) (Decoder, error) {
			return &gateDecoder{first: builds.Add(1) == 1, started: started}, nil
		},
	}, Options{Logger: zerolog.Nop()})
	t.Cleanup(func() {
		_ = f.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.List(ctx)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := f.List(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	require.NoError(t, <-second)
	assert.Equal(t, int32(2), builds.Load())
}

func TestFileUnavailableProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "disk.iso", []byte("x"), 0o644))
	res, err := vfs.NewFsBackend(fs, vfs.FsOptions{}).Lookup(context.Background(), "disk.iso")
	require.NoError(t, err)

	f := New("disk.iso", res, Provider{Name: "iso", Suffixes: []string{".iso"}}, Options{Logger: zerolog.Nop()})
	_, err = f.List(context.Background())
	assert.ErrorIs(t, err, vfs.ErrUnsupported)

	info, err := f.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vfs.KindArchiveRoot, info.Kind)
	assert.Equal(t, int64(1), info.Size)
}
