package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) has(typ EventType, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type == typ && e.Path == name {
			return true
		}
	}
	return false
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	container := filepath.Join(root, "data", "archive.zip")
	require.NoError(t, os.WriteFile(container, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "other.txt"), []byte("x"), 0o644))

	w, err := New(root, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	rec := &recorder{}
	w.OnChange(rec.add)
	require.NoError(t, w.Watch("/data/archive.zip"))
	require.NoError(t, w.Watch("/data/archive.zip"))
	assert.Equal(t, []string{"/data/archive.zip"}, w.Watched())
	w.Start()

	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "other.txt"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(container, []byte("v2"), 0o644))
	require.Eventually(t, func() bool {
		return rec.has(EventWrite, "/data/archive.zip")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(container))
	require.Eventually(t, func() bool {
		return rec.has(EventRemove, "/data/archive.zip")
	}, 5*time.Second, 10*time.Millisecond)

	for _, e := range rec.snapshot() {
		assert.Equal(t, "/data/archive.zip", e.Path)
	}
}

func TestWatchMissingDir(t *testing.T) {
	w, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	require.Error(t, w.Watch("/missing/archive.zip"))
	assert.Empty(t, w.Watched())
}

func TestStopTwice(t *testing.T) {
	w, err := New("", zerolog.Nop())
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
