package archive

import (
	"io/fs"
	"time"

	"github.com/crazy-max/arcfs/pkg/vfs"
)

// Header describes one entry as enumerated by a decoder, in the order of the
// archive's own index.
type Header struct {
	// Name is the path of the entry as stored in the archive.
	Name    string
	Dir     bool
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
	// Locator is opaque to everything but the decoder that produced it.
	Locator any
}

// Entry is a node of a Tree
type Entry struct {
	// Path relative to the archive root, slash separated. Empty for the root.
	Path     string
	Name     string
	Dir      bool
	Implicit bool
	Size     int64
	ModTime  time.Time
	Mode     fs.FileMode
	Locator  any

	parent   *Entry
	children []*Entry
	index    map[string]*Entry
}

// Parent returns the parent entry or nil for the root.
func (e *Entry) Parent() *Entry {
	return e.parent
}

// Children returns the children of a directory entry in insertion order.
func (e *Entry) Children() []*Entry {
	return append([]*Entry(nil), e.children...)
}

// Child returns the direct child called name.
func (e *Entry) Child(name string) (*Entry, bool) {
	c, ok := e.index[name]
	return c, ok
}

// Kind returns the resource kind of the entry.
func (e *Entry) Kind() vfs.Kind {
	if e.Dir {
		return vfs.KindDirectory
	}
	return vfs.KindRegular
}

func (e *Entry) apply(h Header) {
	e.ModTime = h.ModTime
	e.Mode = h.Mode
	e.Locator = h.Locator
	if e.Dir {
		e.Size = 0
	} else {
		e.Size = h.Size
	}
}

func (e *Entry) add(c *Entry) {
	c.parent = e
	if e.index == nil {
		e.index = make(map[string]*Entry)
	}
	e.index[c.Name] = c
	e.children = append(e.children, c)
}
