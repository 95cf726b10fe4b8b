package archive

import (
	"path"
	"strings"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/pkg/errors"
)

// Tree is the directory structure of an archive. It is immutable once
// built and safe for concurrent use.
type Tree struct {
	root  *Entry
	count int
}

// Build inserts headers in order into a new tree. Directories implied by
// nested names are created on the fly and merged with explicit directory
// headers seen before or after them. Nothing is returned unless every header
// was accepted.
func Build(headers []Header) (*Tree, error) {
	t := &Tree{
		root: &Entry{Dir: true, Implicit: true},
	}
	for i, h := range headers {
		if err := t.insert(h); err != nil {
			return nil, vfs.Classify(vfs.ErrCorruptArchive, errors.Wrapf(err, "entry %d", i))
		}
	}
	return t, nil
}

// Root returns the root directory entry.
func (t *Tree) Root() *Entry {
	return t.root
}

// Len returns the number of entries, root excluded.
func (t *Tree) Len() int {
	return t.count
}

// Lookup returns the entry at name, relative to the archive root.
func (t *Tree) Lookup(name string) (*Entry, bool) {
	name = CleanPath(name)
	if name == "" {
		return t.root, true
	}
	e := t.root
	for _, seg := range strings.Split(name, "/") {
		c, ok := e.index[seg]
		if !ok {
			return nil, false
		}
		e = c
	}
	return e, true
}

// Children returns the ordered children of the directory at name.
func (t *Tree) Children(name string) ([]*Entry, error) {
	e, ok := t.Lookup(name)
	if !ok {
		return nil, vfs.ErrNotFound
	}
	if !e.Dir {
		return nil, vfs.ErrNotDir
	}
	return e.Children(), nil
}

// Walk calls fn for every entry depth-first in listing order, root excluded.
func (t *Tree) Walk(fn func(e *Entry) error) error {
	var walk func(e *Entry) error
	walk = func(e *Entry) error {
		for _, c := range e.children {
			if err := fn(c); err != nil {
				return err
			}
			if c.Dir {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(t.root)
}

func (t *Tree) insert(h Header) error {
	name := CleanPath(h.Name)
	if name == "" {
		if !h.Dir {
			return errors.Errorf("file entry %q has no name", h.Name)
		}
		t.root.Implicit = false
		t.root.apply(h)
		return nil
	}

	segs := strings.Split(name, "/")
	parent := t.root
	for i, seg := range segs[:len(segs)-1] {
		next, ok := parent.index[seg]
		if !ok {
			next = &Entry{
				Path:     strings.Join(segs[:i+1], "/"),
				Name:     seg,
				Dir:      true,
				Implicit: true,
			}
			parent.add(next)
			t.count++
		} else if !next.Dir {
			// a regular file already owns this name, first one wins
			return nil
		}
		parent = next
	}

	base := segs[len(segs)-1]
	existing, ok := parent.index[base]
	switch {
	case !ok:
		e := &Entry{
			Path: name,
			Name: base,
			Dir:  h.Dir,
		}
		e.apply(h)
		parent.add(e)
		t.count++
	case existing.Dir && h.Dir:
		existing.Implicit = false
		existing.apply(h)
	case !existing.Dir && !h.Dir:
		existing.apply(h)
	}
	return nil
}

// CleanPath normalizes an entry name: backslashes become slashes, leading
// "./" and "/" are dropped and ".." cannot climb above the root.
func CleanPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	return strings.TrimPrefix(name, "/")
}
