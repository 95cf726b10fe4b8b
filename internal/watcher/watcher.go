// Package watcher monitors mounted archive containers on the local disk and
// broadcasts their changes via callbacks.
package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EventType represents the type of container change
type EventType int

// Container change types.
const (
	EventWrite EventType = iota
	EventRemove
	EventRename
	EventCreate
)

func (t EventType) String() string {
	switch t {
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	case EventCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Event represents a container change. Path is the virtual path the
// container was watched with.
type Event struct {
	Type EventType
	Path string
}

// Callback is a function called when a container changes
type Callback func(Event)

// Watcher monitors the directories holding watched containers
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	logger  zerolog.Logger

	mu         sync.RWMutex
	callbacks  []Callback
	containers map[string]string
	dirs       map[string]bool
	done       chan struct{}
	once       sync.Once
}

// New creates a watcher for containers of a local backend rooted at root.
// An empty root means virtual paths are local paths.
func New(root string, logger zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create watcher")
	}
	return &Watcher{
		watcher:    w,
		root:       root,
		logger:     logger.With().Str("component", "watcher").Logger(),
		containers: make(map[string]string),
		dirs:       make(map[string]bool),
		done:       make(chan struct{}),
	}, nil
}

// OnChange registers a callback for container change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch starts monitoring the container at the virtual path name.
func (w *Watcher) Watch(name string) error {
	osPath := filepath.Clean(filepath.Join(w.root, filepath.FromSlash(name)))
	dir := filepath.Dir(osPath)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.containers[osPath] = name
	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		delete(w.containers, osPath)
		return errors.Wrapf(err, "cannot watch %s", dir)
	}
	w.dirs[dir] = true
	w.logger.Debug().Str("dir", dir).Msg("Watching directory")
	return nil
}

// Watched returns the virtual paths of the watched containers.
func (w *Watcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res := make([]string, 0, len(w.containers))
	for _, name := range w.containers {
		res = append(res, name)
	}
	return res
}

// Start begins dispatching events
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.RLock()
	name, ok := w.containers[filepath.Clean(event.Name)]
	w.mu.RUnlock()
	if !ok {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	case event.Op&fsnotify.Create == fsnotify.Create:
		// replaced by rename over it
		eventType = EventCreate
	default:
		return
	}

	e := Event{
		Type: eventType,
		Path: name,
	}
	w.logger.Debug().Str("path", name).Stringer("type", eventType).Msg("Container changed")

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}
