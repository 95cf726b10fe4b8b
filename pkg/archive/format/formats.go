// Package format holds the decoders of the archive formats known to arcfs
// and registers them on the default registry when imported.
package format

import (
	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/mholt/archives"
)

type compression struct {
	name     string
	suffixes []string
	tar      []string
	dec      archives.Decompressor
}

var compressions = []compression{
	{name: "bzip2", suffixes: []string{".bz2"}, tar: []string{".tar.bz2", ".tbz2", ".tbz"}, dec: archives.Bz2{}},
	{name: "gzip", suffixes: []string{".gz"}, tar: []string{".tar.gz", ".tgz"}, dec: archives.Gz{}},
	{name: "xz", suffixes: []string{".xz"}, tar: []string{".tar.xz", ".txz"}, dec: archives.Xz{}},
	{name: "zstd", suffixes: []string{".zst"}, tar: []string{".tar.zst", ".tzst"}, dec: archives.Zstd{}},
	{name: "lz4", suffixes: []string{".lz4"}, tar: []string{".tar.lz4"}, dec: archives.Lz4{}},
	{name: "s2", suffixes: []string{".sz", ".s2"}, tar: []string{".tar.sz", ".tar.s2"}, dec: archives.Sz{}},
	{name: "brotli", suffixes: []string{".br"}, tar: []string{".tar.br"}, dec: archives.Brotli{}},
	{name: "lzip", suffixes: []string{".lz"}, tar: []string{".tar.lz"}, dec: archives.Lzip{}},
	{name: "minlz", suffixes: []string{".mz"}, tar: []string{".tar.mz"}, dec: archives.MinLZ{}},
}

// Providers returns the providers of every built-in format.
func Providers() []archive.Provider {
	var res []archive.Provider
	for _, c := range compressions {
		p := archive.Provider{
			Name:     c.name,
			Suffixes: c.suffixes,
			Access:   archive.AccessStream,
		}
		p.New = newCompressed(c.dec)(p)
		res = append(res, p, archive.Provider{
			Name:     "tar+" + c.name,
			Suffixes: c.tar,
			Access:   archive.AccessStream,
			New:      newTar(c.dec),
		})
	}
	return append(res,
		archive.Provider{
			Name:     "tar",
			Suffixes: []string{".tar"},
			Access:   archive.AccessStream,
			New:      newTar(nil),
		},
		archive.Provider{
			Name:     "zip",
			Suffixes: []string{".zip", ".jar", ".apk"},
			Access:   archive.AccessRandom,
			New:      newZip,
		},
		archive.Provider{
			Name:     "rar",
			Suffixes: []string{".rar"},
			Access:   archive.AccessStream,
			New:      newRar,
		},
		archive.Provider{
			Name:     "7z",
			Suffixes: []string{".7z"},
			Access:   archive.AccessRandom,
			New:      newSevenZip,
		},
		archive.Provider{
			Name:     "iso",
			Suffixes: []string{".iso"},
			Access:   archive.AccessRandom,
		},
	)
}

// RegisterAll registers the built-in formats on r.
func RegisterAll(r *archive.Registry) {
	for _, p := range Providers() {
		r.Register(p)
	}
}

func init() {
	RegisterAll(archive.Default)
}
