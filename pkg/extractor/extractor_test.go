package extractor

import (
	"context"
	"testing"

	"github.com/crazy-max/arcfs/internal/fixture"
	"github.com/crazy-max/arcfs/pkg/archive"
	"github.com/crazy-max/arcfs/pkg/archive/format"
	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountZip(t *testing.T, files ...fixture.File) *archive.File {
	t.Helper()
	fs := fixture.Fs(map[string][]byte{"/src/app.zip": fixture.Zip(files...)})
	res, err := vfs.NewFsBackend(fs, vfs.FsOptions{}).Lookup(context.Background(), "/src/app.zip")
	require.NoError(t, err)
	registry := archive.NewRegistry()
	format.RegisterAll(registry)
	p, ok := registry.Resolve("app.zip")
	require.True(t, ok)
	f := archive.New("/src/app.zip", res, p, archive.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f
}

func TestExtract(t *testing.T) {
	testCases := []struct {
		desc     string
		includes []string
		expected map[string]string
		missing  []string
	}{
		{
			desc: "all",
			expected: map[string]string{
				"/out/bin/tool":        "tool",
				"/out/docs/readme.md":  "readme",
				"/out/docs/api/ref.md": "ref",
				"/out/main.go":         "main",
			},
		},
		{
			desc:     "subset",
			includes: []string{"/docs/api", "main.go"},
			expected: map[string]string{
				"/out/docs/api/ref.md": "ref",
				"/out/main.go":         "main",
			},
			missing: []string{"/out/bin/tool", "/out/docs/readme.md"},
		},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.desc, func(t *testing.T) {
			src := mountZip(t,
				fixture.File{Name: "bin/tool", Data: []byte("tool")},
				fixture.File{Name: "docs/readme.md", Data: []byte("readme")},
				fixture.File{Name: "docs/api/ref.md", Data: []byte("ref")},
				fixture.File{Name: "main.go", Data: []byte("main")},
			)
			out := afero.NewMemMapFs()
			stats, err := Extract(context.Background(), src, vfs.NewFsBackend(out, vfs.FsOptions{}), "/out", Opts{
				Logger:   zerolog.Nop(),
				Includes: tt.includes,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.expected)), stats.Files)

			var total int64
			for name, content := range tt.expected {
				b, err := afero.ReadFile(out, name)
				require.NoError(t, err, name)
				assert.Equal(t, content, string(b))
				total += int64(len(content))
			}
			assert.Equal(t, total, stats.Bytes)
			for _, name := range tt.missing {
				exists, err := afero.Exists(out, name)
				require.NoError(t, err)
				assert.False(t, exists, name)
			}
		})
	}
}

func TestExtractSingleFile(t *testing.T) {
	ctx := context.Background()
	src := mountZip(t, fixture.File{Name: "a/b.txt", Data: []byte("b")})
	res, err := src.Lookup(ctx, "a/b.txt")
	require.NoError(t, err)

	out := afero.NewMemMapFs()
	stats, err := Extract(ctx, res, vfs.NewFsBackend(out, vfs.FsOptions{}), "/out", Opts{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Files)

	b, err := afero.ReadFile(out, "/out/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

func TestFileIsIncluded(t *testing.T) {
	testCases := []struct {
		list     []string
		name     string
		included bool
		needed   bool
	}{
		{list: nil, name: "any", included: true, needed: true},
		{list: []string{"docs"}, name: "docs", included: true, needed: true},
		{list: []string{"docs"}, name: "docs/a.md", included: true, needed: true},
		{list: []string{"docs"}, name: "docsx", included: false, needed: false},
		{list: []string{"docs/api/ref.md"}, name: "docs", included: false, needed: true},
		{list: []string{"docs/api/ref.md"}, name: "docs/api", included: false, needed: true},
		{list: []string{"docs/api/ref.md"}, name: "bin", included: false, needed: false},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.included, fileIsIncluded(tt.list, tt.name), tt.name)
		assert.Equal(t, tt.needed, dirIsNeeded(tt.list, tt.name), tt.name)
	}
}
