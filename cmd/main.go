package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/crazy-max/arcfs/internal/app"
	"github.com/crazy-max/arcfs/internal/logging"
	"github.com/crazy-max/arcfs/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	arcfs   *app.Arcfs
	cli     config.Cli
	version = "dev"
	meta    = config.Meta{
		ID:     "arcfs",
		Name:   "arcfs",
		Desc:   "Browse archives and nested archives as plain folders",
		URL:    "https://github.com/crazy-max/arcfs",
		Author: "CrazyMax",
	}
)

func main() {
	var err error
	runtime.GOMAXPROCS(runtime.NumCPU())

	meta.Version = version

	kctx := kong.Parse(&cli,
		kong.Name(meta.ID),
		kong.Description(fmt.Sprintf("%s. More info: %s", meta.Desc, meta.URL)),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	// Logging
	logging.Configure(cli)

	// Init
	if arcfs, err = app.New(meta, cli); err != nil {
		log.Fatal().Err(err).Msg("cannot initialize arcfs")
	}

	// Handle os signals
	channel := make(chan os.Signal, 1)
	signal.Notify(channel, os.Interrupt, SIGTERM)
	go func() {
		sig := <-channel
		arcfs.Close()
		log.Warn().Msgf("caught signal %v", sig)
		os.Exit(0)
	}()

	// Start
	err = arcfs.Start(kctx.Command())
	arcfs.Close()
	if errors.Is(err, app.ErrMissing) {
		os.Exit(1)
	} else if err != nil {
		log.Fatal().Stack().Err(err).Send()
	}
}
