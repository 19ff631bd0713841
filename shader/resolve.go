package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a fragment path resolves to no file.
var ErrNotFound = errors.New("shader fragment not found")

// LibraryPrefix marks a path relative to the shared library root. Library
// fragments are never watched.
const LibraryPrefix = "#"

// Descriptor is a resolved fragment location.
type Descriptor struct {
	Path  string
	Watch bool
}

// Resolver maps the fragment paths written in project files to files.
type Resolver struct {
	// Project lists the roots searched first, in order.
	Project []string
	Library string
}

// Resolve locates p. Forward slashes are accepted on every platform.
func (r Resolver) Resolve(p string) (Descriptor, error) {
	if strings.TrimSpace(p) == "" {
		return Descriptor{}, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	rel := filepath.FromSlash(p)

	if strings.HasPrefix(rel, LibraryPrefix) {
		full := filepath.Join(r.Library, strings.TrimPrefix(rel, LibraryPrefix))
		if !isFile(full) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return Descriptor{Path: full}, nil
	}

	if filepath.IsAbs(rel) {
		if isFile(rel) {
			return Descriptor{Path: rel, Watch: true}, nil
		}
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	for _, root := range r.Project {
		full := filepath.Join(root, rel)
		if isFile(full) {
			return Descriptor{Path: full, Watch: true}, nil
		}
	}
	if r.Library != "" {
		full := filepath.Join(r.Library, rel)
		if isFile(full) {
			return Descriptor{Path: full, Watch: true}, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, p)
}

// Compose resolves and opens every path in order. Already opened fragments
// are closed when a later one fails.
func (r Resolver) Compose(paths []string) (*Composer, error) {
	c := NewComposer()
	for _, p := range paths {
		d, err := r.Resolve(p)
		if err != nil {
			c.Close()
			return nil, err
		}
		f, err := NewFileFragment(d.Path, d.Watch)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Push(f)
	}
	return c, nil
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
