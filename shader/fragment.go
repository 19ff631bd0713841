// Package shader loads GLSL source fragments, concatenates them into
// program text and watches the files behind them for edits.
package shader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richinsley/goshadergraph/logger"
)

// Fragment is one piece of shader source.
type Fragment interface {
	// Text returns the current source.
	Text() string
	// CheckChanged reloads the source if it was edited since the last call
	// and reports whether the text differs. It never blocks.
	CheckChanged() (bool, error)
	Close() error
}

// Static is a fragment whose text never changes.
type Static string

func (s Static) Text() string                { return string(s) }
func (s Static) CheckChanged() (bool, error) { return false, nil }
func (s Static) Close() error                { return nil }

// FileFragment is a fragment read from disk. When watched, edits to the
// file are picked up by CheckChanged.
type FileFragment struct {
	path    string
	text    []byte
	watcher *Watcher
	touched bool
}

// NewFileFragment reads path. With watch set, the fragment subscribes to
// the process-wide watcher.
func NewFileFragment(path string, watch bool) (*FileFragment, error) {
	if !watch {
		return OpenFileFragment(path, nil)
	}
	return OpenFileFragment(path, defaultWatcher)
}

// OpenFileFragment reads path and, with a non-nil w, subscribes to edits
// through w. The containing directory is watched so that editors which
// replace the file are also seen.
func OpenFileFragment(path string, w *Watcher) (*FileFragment, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read shader %s: %w", path, err)
	}
	f := &FileFragment{path: filepath.Clean(path), text: text}
	if w == nil {
		return f, nil
	}
	if err := w.subscribe(f); err != nil {
		return nil, err
	}
	f.watcher = w
	return f, nil
}

func (f *FileFragment) Path() string { return f.path }

func (f *FileFragment) Watched() bool { return f.watcher != nil }

func (f *FileFragment) Text() string { return string(f.text) }

func (f *FileFragment) CheckChanged() (bool, error) {
	if f.watcher == nil || !f.watcher.take(f) {
		return false, nil
	}
	text, err := os.ReadFile(f.path)
	if err != nil {
		// mid-save; the next write event retries
		return false, fmt.Errorf("failed to reload shader %s: %w", f.path, err)
	}
	if bytes.Equal(text, f.text) {
		return false, nil
	}
	f.text = text
	logger.Logger().Debug("shader reloaded", "path", f.path)
	return true, nil
}

func (f *FileFragment) Close() error {
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.unsubscribe(f)
	f.watcher = nil
	return err
}

// Composer concatenates fragments in order.
type Composer struct {
	fragments []Fragment
}

func NewComposer(fragments ...Fragment) *Composer {
	return &Composer{fragments: fragments}
}

func (c *Composer) Push(f Fragment) { c.fragments = append(c.fragments, f) }

func (c *Composer) Len() int { return len(c.fragments) }

// Text joins the fragment texts with newlines.
func (c *Composer) Text() string {
	var sb strings.Builder
	for i, f := range c.fragments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(f.Text())
	}
	return sb.String()
}

// CheckChanged polls every fragment. Errors from individual fragments are
// joined; a fragment that failed to reload keeps its previous text.
func (c *Composer) CheckChanged() (bool, error) {
	changed := false
	var errs []error
	for _, f := range c.fragments {
		ok, err := f.CheckChanged()
		if err != nil {
			errs = append(errs, err)
		}
		changed = changed || ok
	}
	return changed, errors.Join(errs...)
}

func (c *Composer) Close() error {
	var errs []error
	for _, f := range c.fragments {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
