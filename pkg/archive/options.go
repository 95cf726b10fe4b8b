package archive

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	DefaultSpoolMemory    int64 = 64 << 20
	DefaultEntryCacheSize       = 256
	DefaultMaxEntryCache  int64 = 1 << 20
)

// Options holds archive file options
type Options struct {
	Logger zerolog.Logger

	// SpoolMemory is the largest container kept in memory when it has to be
	// copied to serve positioned reads. Larger ones are written to a temp
	// file of SpoolFs in SpoolDir.
	SpoolMemory int64
	SpoolFs     afero.Fs
	SpoolDir    string

	// EntryCacheSize is the number of decoded entries kept per archive, and
	// MaxEntryCache the largest entry kept. A negative MaxEntryCache
	// disables the cache.
	EntryCacheSize int
	MaxEntryCache  int64
}

func (o Options) withDefaults() Options {
	if o.SpoolMemory <= 0 {
		o.SpoolMemory = DefaultSpoolMemory
	}
	if o.SpoolFs == nil {
		o.SpoolFs = afero.NewOsFs()
	}
	if o.EntryCacheSize <= 0 {
		o.EntryCacheSize = DefaultEntryCacheSize
	}
	if o.MaxEntryCache == 0 {
		o.MaxEntryCache = DefaultMaxEntryCache
	}
	return o
}
