package config

import (
	"github.com/alecthomas/kong"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

type Cli struct {
	Version kong.VersionFlag

	LogLevel   string `kong:"name=log-level,env=LOG_LEVEL,default=info,help='Set log level.'"`
	LogJSON    bool   `kong:"name=log-json,env=LOG_JSON,default=false,help='Enable JSON logging output.'"`
	LogCaller  bool   `kong:"name=log-caller,env=LOG_CALLER,default=false,help='Add file:line of the caller to log output.'"`
	LogNoColor bool   `kong:"name=log-nocolor,env=LOG_NOCOLOR,default=false,help='Disable colorized output.'"`

	Root           string   `kong:"name=root,type=path,env=ARCFS_ROOT,help='Resolve virtual paths relative to this folder.'"`
	CacheSize      int      `kong:"name=cache-size,env=ARCFS_CACHE_SIZE,default=128,help='Number of mounted archives kept open.'"`
	EntryCacheSize int      `kong:"name=entry-cache-size,env=ARCFS_ENTRY_CACHE_SIZE,default=256,help='Number of decoded entries cached per archive.'"`
	MaxEntryCache  string   `kong:"name=max-entry-cache,env=ARCFS_MAX_ENTRY_CACHE,default=1MiB,help='Largest decoded entry kept in cache. (eg. 512KiB, 0 disables)'"`
	SpoolMemory    string   `kong:"name=spool-memory,env=ARCFS_SPOOL_MEMORY,default=64MiB,help='Largest archive spooled in memory before using a temp file.'"`
	SpoolDir       string   `kong:"name=spool-dir,type=path,env=ARCFS_SPOOL_DIR,help='Folder for spool files. (default to system temp dir)'"`
	DisableFormats []string `kong:"name=disable-format,env=ARCFS_DISABLE_FORMATS,help='Turn off an archive format by name. (eg. rar)'"`

	Ls      LsCmd      `kong:"cmd,name=ls,help='List folders and archives.'"`
	Cat     CatCmd     `kong:"cmd,name=cat,help='Write the content of a file to stdout.'"`
	Stat    StatCmd    `kong:"cmd,name=stat,help='Display metadata of a path.'"`
	Exists  ExistsCmd  `kong:"cmd,name=exists,help='Exit with status 1 if a path does not exist.'"`
	Extract ExtractCmd `kong:"cmd,name=extract,help='Copy a folder or archive to a local folder.'"`
	Formats FormatsCmd `kong:"cmd,name=formats,help='List supported archive formats.'"`
}

type LsCmd struct {
	Watch bool     `kong:"name=watch,default=false,help='Keep running and list again when a mounted archive changes.'"`
	Paths []string `kong:"arg,required,name=path,help='Virtual paths. (eg. ./backup.tar.gz/etc)'"`
}

type CatCmd struct {
	Raw  bool   `kong:"name=raw,default=false,help='Write the bytes of an archive instead of browsing it.'"`
	Path string `kong:"arg,required,name=path,help='Virtual path of a file.'"`
}

type StatCmd struct {
	Path string `kong:"arg,required,name=path,help='Virtual path.'"`
}

type ExistsCmd struct {
	Path string `kong:"arg,required,name=path,help='Virtual path.'"`
}

type ExtractCmd struct {
	Mount    bool     `kong:"name=mount,default=false,help='Mount the source as an archive even if its name is not recognized.'"`
	Includes []string `kong:"name=include,help='Include a subset of files/dirs from the source.'"`
	Source   string   `kong:"arg,required,name=source,help='Virtual path of a folder or archive. (eg. ./app.zip/lib)'"`
	Dist     string   `kong:"arg,required,name=dist,type=path,help='Dist folder. (eg. ./dist)'"`
}

type FormatsCmd struct{}

// MaxEntryCacheBytes returns the parsed max-entry-cache option. Zero
// disables the cache.
func (c Cli) MaxEntryCacheBytes() (int64, error) {
	n, err := units.RAMInBytes(c.MaxEntryCache)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid max entry cache %q", c.MaxEntryCache)
	}
	return n, nil
}

// SpoolMemoryBytes returns the parsed spool-memory option.
func (c Cli) SpoolMemoryBytes() (int64, error) {
	n, err := units.RAMInBytes(c.SpoolMemory)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid spool memory %q", c.SpoolMemory)
	}
	if n <= 0 {
		return 0, errors.Errorf("spool memory must be positive, got %q", c.SpoolMemory)
	}
	return n, nil
}
