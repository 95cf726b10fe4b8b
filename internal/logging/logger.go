package logging

import (
	"io"
	"os"
	"time"

	"github.com/crazy-max/arcfs/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// New returns a logger writing to w
func New(cli config.Cli, w io.Writer) zerolog.Logger {
	// Adds support for NO_COLOR. More info https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")

	if !cli.LogJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor || cli.LogNoColor,
			TimeFormat: time.RFC1123,
		}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if cli.LogCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Configure configures the global logger. Logs are written to stderr, stdout
// is kept for the output of cat and ls.
func Configure(cli config.Cli) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = New(cli, os.Stderr)

	logLevel, err := zerolog.ParseLevel(cli.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msgf("Unknown log level")
	} else {
		zerolog.SetGlobalLevel(logLevel)
	}
}
