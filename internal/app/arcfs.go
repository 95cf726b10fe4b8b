package app

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/crazy-max/arcfs/internal/watcher"
	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/archive/format"
	"github.com/crazy-max/arcfs/pkg/config"
	"github.com/crazy-max/arcfs/pkg/resolver"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ErrMissing is returned by the exists command when the path does not
// exist.
var ErrMissing = errors.New("path does not exist")

// Arcfs represents an active arcfs object
type Arcfs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	meta     config.Meta
	cli      config.Cli
	out      io.Writer
	registry *archive.Registry
	backend  *vfs.FsBackend
	resolver *resolver.Resolver
	watcher  *watcher.Watcher
}

// New creates new arcfs instance
func New(meta config.Meta, cli config.Cli) (*Arcfs, error) {
	return newArcfs(meta, cli, vfs.NewOsBackend(cli.Root), os.Stdout)
}

func newArcfs(meta config.Meta, cli config.Cli, backend *vfs.FsBackend, out io.Writer) (*Arcfs, error) {
	registry := archive.NewRegistry()
	format.RegisterAll(registry)
	for _, name := range cli.DisableFormats {
		if !registry.Disable(strings.TrimSpace(name)) {
			return nil, errors.Errorf("unknown archive format %q", name)
		}
	}

	maxEntryCache, err := cli.MaxEntryCacheBytes()
	if err != nil {
		return nil, err
	}
	if maxEntryCache == 0 {
		maxEntryCache = -1
	}
	spoolMemory, err := cli.SpoolMemoryBytes()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Arcfs{
		ctx:      ctx,
		cancel:   cancel,
		meta:     meta,
		cli:      cli,
		out:      out,
		registry: registry,
		backend:  backend,
	}

	opts := resolver.Options{
		Logger:    log.Logger,
		Registry:  c.registry,
		CacheSize: cli.CacheSize,
		Archive: archive.Options{
			SpoolMemory:    spoolMemory,
			SpoolFs:        afero.NewOsFs(),
			SpoolDir:       cli.SpoolDir,
			EntryCacheSize: cli.EntryCacheSize,
			MaxEntryCache:  maxEntryCache,
		},
	}
	if cli.Ls.Watch {
		if c.watcher, err = watcher.New(cli.Root, log.Logger); err != nil {
			cancel()
			return nil, err
		}
		opts.OnMount = func(name string) {
			if err := c.watcher.Watch(name); err != nil {
				log.Warn().Err(err).Str("archive", name).Msg("Cannot watch archive")
			}
		}
	}

	if c.resolver, err = resolver.New(backend, opts); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Start runs the parsed command
func (c *Arcfs) Start(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return errors.New("no command")
	}
	switch fields[0] {
	case "ls":
		if c.cli.Ls.Watch {
			return c.watchList(c.cli.Ls.Paths)
		}
		return c.list(c.cli.Ls.Paths)
	case "cat":
		return c.cat(c.cli.Cat.Path, c.cli.Cat.Raw)
	case "stat":
		return c.stat(c.cli.Stat.Path)
	case "exists":
		return c.exists(c.cli.Exists.Path)
	case "extract":
		return c.extract(c.cli.Extract)
	case "formats":
		return c.formats()
	default:
		return errors.Errorf("unknown command %q", fields[0])
	}
}

// Close closes arcfs
func (c *Arcfs) Close() {
	c.cancel()
	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("Cannot stop watcher")
		}
	}
	if err := c.resolver.Close(); err != nil {
		log.Warn().Err(err).Msg("Cannot close resolver")
	}
}
