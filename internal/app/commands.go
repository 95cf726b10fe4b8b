package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/crazy-max/arcfs/internal/watcher"
	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/config"
	"github.com/crazy-max/arcfs/pkg/extractor"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type listing struct {
	path    string
	entries []vfs.Info
}

func (c *Arcfs) list(paths []string) error {
	listings := make([]listing, len(paths))
	eg, ctx := errgroup.WithContext(c.ctx)
	for i, p := range paths {
		i, p := i, p
		eg.Go(func() error {
			entries, err := c.listPath(ctx, p)
			if err != nil {
				return err
			}
			listings[i] = listing{path: p, entries: entries}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for i, l := range listings {
		if len(listings) > 1 {
			if i > 0 {
				fmt.Fprintln(tw)
			}
			fmt.Fprintf(tw, "%s:\n", l.path)
		}
		for _, info := range l.entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Kind, humanSize(info), info.ModTime.Format(time.DateTime), info.Name)
		}
	}
	return tw.Flush()
}

func (c *Arcfs) listPath(ctx context.Context, name string) ([]vfs.Info, error) {
	res, err := c.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	info, err := res.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Kind.IsDir() {
		return []vfs.Info{info}, nil
	}
	children, err := res.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]vfs.Info, 0, len(children))
	for _, child := range children {
		ci, err := child.Stat(ctx)
		if err != nil {
			return nil, err
		}
		if ci.Kind == vfs.KindRegular {
			if p, ok := c.registry.Resolve(ci.Name); ok && p.Available() {
				ci.Kind = vfs.KindArchiveRoot
			}
		}
		entries = append(entries, ci)
	}
	return entries, nil
}

// watchList lists paths then lists them again each time a mounted archive
// changes, until the app is closed.
func (c *Arcfs) watchList(paths []string) error {
	changed := make(chan watcher.Event, 1)
	c.watcher.OnChange(func(e watcher.Event) {
		if c.resolver.Invalidate(e.Path) == 0 {
			return
		}
		select {
		case changed <- e:
		default:
		}
	})
	c.watcher.Start()

	for {
		if err := c.list(paths); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("Cannot list")
		}
		select {
		case <-c.ctx.Done():
			return nil
		case e := <-changed:
			log.Info().Str("archive", e.Path).Stringer("event", e.Type).Msg("Archive changed")
		}
	}
}

func (c *Arcfs) cat(name string, raw bool) error {
	var res vfs.Resource
	var err error
	if raw {
		res, err = c.resolver.AsRawResource(c.ctx, name)
	} else {
		res, err = c.resolver.Resolve(c.ctx, name)
	}
	if err != nil {
		return err
	}
	rc, err := res.Open(c.ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(c.out, rc)
	return err
}

func (c *Arcfs) stat(name string) error {
	res, err := c.resolver.Resolve(c.ctx, name)
	if err != nil {
		return err
	}
	info, err := res.Stat(c.ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", res.Path())
	fmt.Fprintf(tw, "Kind:\t%s\n", info.Kind)
	fmt.Fprintf(tw, "Size:\t%s\n", sizeString(info.Size))
	fmt.Fprintf(tw, "Mode:\t%s\n", info.Mode)
	fmt.Fprintf(tw, "Modified:\t%s\n", info.ModTime.Format(time.RFC3339))
	if f, ok := res.(*archive.File); ok {
		fmt.Fprintf(tw, "Format:\t%s\n", f.Provider().Name)
		tree, err := f.Tree(c.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "Entries:\t%d\n", tree.Len())
	}
	return tw.Flush()
}

func (c *Arcfs) exists(name string) error {
	ok, err := c.resolver.Exists(c.ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMissing
	}
	return nil
}

func (c *Arcfs) extract(cmd config.ExtractCmd) error {
	var src vfs.Resource
	var err error
	if cmd.Mount {
		src, err = c.resolver.AsMountedDirectory(c.ctx, cmd.Source)
	} else {
		src, err = c.resolver.Resolve(c.ctx, cmd.Source)
	}
	if err != nil {
		return err
	}

	logger := log.With().Str("src", src.Path()).Str("dist", cmd.Dist).Logger()
	logger.Info().Msg("Extracting")
	start := time.Now()
	stats, err := extractor.Extract(c.ctx, src, vfs.NewOsBackend(""), filepath.ToSlash(cmd.Dist), extractor.Opts{
		Logger:   logger,
		Includes: cmd.Includes,
	})
	if err != nil {
		return errors.Wrapf(err, "cannot extract %s", cmd.Source)
	}
	logger.Info().
		Int64("files", stats.Files).
		Int64("dirs", stats.Dirs).
		Str("size", units.HumanSize(float64(stats.Bytes))).
		Dur("took", time.Since(start)).
		Msg("Extraction complete")
	return nil
}

func (c *Arcfs) formats() error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSUFFIXES\tACCESS\tSTATUS")
	for _, p := range c.registry.Providers() {
		status := "available"
		switch {
		case p.New == nil:
			status = "unsupported"
		case p.Disabled:
			status = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, strings.Join(p.Suffixes, " "), p.Access, status)
	}
	return tw.Flush()
}

func humanSize(info vfs.Info) string {
	if info.Kind == vfs.KindDirectory {
		return "-"
	}
	if info.Size < 0 {
		return "?"
	}
	return units.HumanSize(float64(info.Size))
}

func sizeString(size int64) string {
	if size < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d (%s)", size, units.HumanSize(float64(size)))
}
