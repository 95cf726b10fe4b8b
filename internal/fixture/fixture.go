// Package fixture builds small archives in memory for tests.
package fixture

import (
	"bytes"
	"context"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archives"
	"github.com/spf13/afero"
)

// ModTime is the modification time given to every fixture entry.
var ModTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// File is an archive member. A name ending with a slash is a directory.
type File struct {
	Name string
	Data []byte
}

// Compress encodes data with c, for instance archives.Bz2{}.
func Compress(c archives.Compressor, data []byte) []byte {
	var buf bytes.Buffer
	w, err := c.OpenWriter(&buf)
	if err != nil {
		panic(err)
	}
	if _, err = w.Write(data); err != nil {
		panic(err)
	}
	if err = w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Tar writes files as a tarball in the given order.
func Tar(files ...File) []byte {
	infos := make([]archives.FileInfo, 0, len(files))
	for _, f := range files {
		f := f
		infos = append(infos, archives.FileInfo{
			FileInfo:      memInfo{name: f.Name, size: int64(len(f.Data))},
			NameInArchive: f.Name,
			Open: func() (fs.File, error) {
				return memFile{Reader: bytes.NewReader(f.Data), info: memInfo{name: f.Name, size: int64(len(f.Data))}}, nil
			},
		})
	}
	var buf bytes.Buffer
	if err := (archives.Tar{}).Archive(context.Background(), &buf, infos); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Zip writes files as a zip archive in the given order.
func Zip(files ...File) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: ModTime,
		})
		if err != nil {
			panic(err)
		}
		if _, err = w.Write(f.Data); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Fs returns an in-memory filesystem holding the given files.
func Fs(files map[string][]byte) afero.Fs {
	mfs := afero.NewMemMapFs()
	for name, data := range files {
		if err := mfs.MkdirAll(path.Dir(name), 0o755); err != nil {
			panic(err)
		}
		if err := afero.WriteFile(mfs, name, data, 0o644); err != nil {
			panic(err)
		}
		if err := mfs.Chtimes(name, ModTime, ModTime); err != nil {
			panic(err)
		}
	}
	return mfs
}

// Payload returns n bytes of text that compress poorly enough to span
// several blocks.
func Payload(n int) []byte {
	b := make([]byte, n)
	var x uint32 = 2463534242
	for i := range b {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b[i] = 'a' + byte(x%26)
	}
	return b
}

type memInfo struct {
	name string
	size int64
}

func (m memInfo) Name() string { return path.Base(strings.TrimSuffix(m.name, "/")) }
func (m memInfo) Size() int64  { return m.size }
func (m memInfo) Mode() fs.FileMode {
	if m.IsDir() {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (m memInfo) ModTime() time.Time { return ModTime }
func (m memInfo) IsDir() bool        { return strings.HasSuffix(m.name, "/") }
func (m memInfo) Sys() any           { return nil }

type memFile struct {
	*bytes.Reader
	info memInfo
}

func (m memFile) Stat() (fs.FileInfo, error) { return m.info, nil }
func (m memFile) Close() error               { return nil }
