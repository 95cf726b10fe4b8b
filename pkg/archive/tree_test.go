package archive

import (
	"testing"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(entries []*Entry) []string {
	var res []string
	for _, e := range entries {
		res = append(res, e.Path)
	}
	return res
}

func TestBuild(t *testing.T) {
	tree, err := Build([]Header{
		{Name: "b/c.txt", Size: 3},
		{Name: "a.txt", Size: 1},
		{Name: "b/", Dir: true},
		{Name: "d/e/f.txt", Size: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, tree.Len())
	assert.Equal(t, []string{"b", "a.txt", "d"}, paths(tree.Root().Children()))

	b, ok := tree.Lookup("b")
	require.True(t, ok)
	assert.True(t, b.Dir)
	assert.False(t, b.Implicit)
	assert.Equal(t, int64(0), b.Size)

	d, ok := tree.Lookup("d/e")
	require.True(t, ok)
	assert.True(t, d.Implicit)
	assert.Equal(t, "d", d.Parent().Path)

	f, ok := tree.Lookup("d/e/f.txt")
	require.True(t, ok)
	assert.Equal(t, vfs.KindRegular, f.Kind())
	assert.Equal(t, int64(5), f.Size)

	_, ok = tree.Lookup("nope")
	assert.False(t, ok)

	root, ok := tree.Lookup("")
	require.True(t, ok)
	assert.Equal(t, tree.Root(), root)
}

func TestBuildNormalizesNames(t *testing.T) {
	tree, err := Build([]Header{
		{Name: "./x/y.txt"},
		{Name: "/abs.txt"},
		{Name: "win\\path.txt"},
		{Name: "../../escape.txt"},
		{Name: "./", Dir: true},
	})
	require.NoError(t, err)
	for _, name := range []string{"x/y.txt", "abs.txt", "win/path.txt", "escape.txt"} {
		_, ok := tree.Lookup(name)
		assert.True(t, ok, name)
	}
	assert.False(t, tree.Root().Implicit)
}

func TestBuildConflicts(t *testing.T) {
	tree, err := Build([]Header{
		{Name: "a", Size: 1, Locator: 0},
		{Name: "a/b", Size: 2, Locator: 1},
		{Name: "a", Dir: true, Locator: 2},
		{Name: "c", Size: 1, Locator: 3},
		{Name: "c", Size: 9, Locator: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())

	a, ok := tree.Lookup("a")
	require.True(t, ok)
	assert.False(t, a.Dir)
	assert.Equal(t, 0, a.Locator)

	c, ok := tree.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, int64(9), c.Size)
	assert.Equal(t, 4, c.Locator)
	assert.Equal(t, []string{"a", "c"}, paths(tree.Root().Children()))
}

func TestBuildEmptyFileName(t *testing.T) {
	_, err := Build([]Header{{Name: "."}})
	require.Error(t, err)
	assert.ErrorIs(t, err, vfs.ErrCorruptArchive)
}

func TestBuildDeterministic(t *testing.T) {
	headers := []Header{
		{Name: "z/1"}, {Name: "a/2"}, {Name: "m"}, {Name: "a/1"}, {Name: "z/"},
	}
	t1, err := Build(headers)
	require.NoError(t, err)
	t2, err := Build(headers)
	require.NoError(t, err)

	var w1, w2 []string
	require.NoError(t, t1.Walk(func(e *Entry) error {
		w1 = append(w1, e.Path)
		return nil
	}))
	require.NoError(t, t2.Walk(func(e *Entry) error {
		w2 = append(w2, e.Path)
		return nil
	}))
	assert.Equal(t, w1, w2)
	assert.Equal(t, []string{"z", "z/1", "a", "a/2", "a/1", "m"}, w1)
}

func TestChildren(t *testing.T) {
	tree, err := Build([]Header{{Name: "dir/file"}})
	require.NoError(t, err)

	children, err := tree.Children("dir")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir/file"}, paths(children))

	_, err = tree.Children("dir/file")
	assert.ErrorIs(t, err, vfs.ErrNotDir)
	_, err = tree.Children("missing")
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestCleanPath(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{name: "", expected: ""},
		{name: ".", expected: ""},
		{name: "/", expected: ""},
		{name: "a/b/", expected: "a/b"},
		{name: "a//b", expected: "a/b"},
		{name: "a\\b", expected: "a/b"},
		{name: "../a", expected: "a"},
		{name: "a/../b", expected: "b"},
	}
	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanPath(tt.name))
		})
	}
}
