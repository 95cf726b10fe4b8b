package vfs

import (
	"path"
	"path/filepath"
	"strings"
)

// Clean normalizes a virtual path to slash separators without trailing
// slash. Absolute paths stay absolute.
func Clean(name string) string {
	name = filepath.ToSlash(name)
	if name == "" {
		return "."
	}
	return path.Clean(name)
}

// Split cleans name and splits it into its root prefix ("/" or "") and its
// segments.
func Split(name string) (string, []string) {
	name = Clean(name)
	var prefix string
	if strings.HasPrefix(name, "/") {
		prefix = "/"
		name = strings.TrimPrefix(name, "/")
	}
	if name == "" || name == "." {
		return prefix, nil
	}
	return prefix, strings.Split(name, "/")
}

// Join joins segments under prefix.
func Join(prefix string, segments ...string) string {
	if len(segments) == 0 {
		if prefix == "" {
			return "."
		}
		return prefix
	}
	return prefix + strings.Join(segments, "/")
}

// Child returns the virtual path of name under dir.
func Child(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
