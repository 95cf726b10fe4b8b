package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/crazy-max/arcfs/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		desc     string
		cli      config.Cli
		contains []string
	}{
		{
			desc:     "console",
			cli:      config.Cli{LogNoColor: true},
			contains: []string{"INF", "Archive mounted", "archive=a.zip"},
		},
		{
			desc:     "json",
			cli:      config.Cli{LogJSON: true},
			contains: []string{`"level":"info"`, `"message":"Archive mounted"`, `"archive":"a.zip"`},
		},
		{
			desc:     "caller",
			cli:      config.Cli{LogJSON: true, LogCaller: true},
			contains: []string{`"caller":`, "logger_test.go"},
		},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.cli, &buf)
			logger.Info().Str("archive", "a.zip").Msg("Archive mounted")
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			if tt.cli.LogJSON {
				var fields map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
				assert.Contains(t, fields, "time")
			}
		})
	}
}
