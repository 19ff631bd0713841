package shader

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/richinsley/goshadergraph/logger"
)

// Watcher shares one fsnotify watcher between file fragments. Each
// directory is added once however many fragments live in it. Events are
// only read when a fragment checks for changes; nothing is dispatched in
// the background.
type Watcher struct {
	mu   sync.Mutex
	fs   *fsnotify.Watcher
	dirs map[string]int
	subs map[string][]*FileFragment
}

// NewWatcher returns an idle watcher. The fsnotify watcher is created on
// the first subscription and closed when the last one is dropped.
func NewWatcher() *Watcher {
	return &Watcher{
		dirs: make(map[string]int),
		subs: make(map[string][]*FileFragment),
	}
}

// defaultWatcher serves NewFileFragment.
var defaultWatcher = NewWatcher()

func (w *Watcher) subscribe(f *FileFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fs == nil {
		fs, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create shader watcher: %w", err)
		}
		w.fs = fs
	}
	dir := filepath.Dir(f.path)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			w.closeIfIdle()
			return fmt.Errorf("failed to watch %s: %w", f.path, err)
		}
	}
	w.dirs[dir]++
	w.subs[f.path] = append(w.subs[f.path], f)
	return nil
}

func (w *Watcher) unsubscribe(f *FileFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	subs := w.subs[f.path]
	i := -1
	for j, s := range subs {
		if s == f {
			i = j
			break
		}
	}
	if i < 0 {
		return nil
	}
	if len(subs) == 1 {
		delete(w.subs, f.path)
	} else {
		w.subs[f.path] = append(subs[:i:i], subs[i+1:]...)
	}

	dir := filepath.Dir(f.path)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	var err error
	if len(w.dirs) > 0 {
		err = w.fs.Remove(dir)
	}
	if cerr := w.closeIfIdle(); err == nil {
		err = cerr
	}
	return err
}

// closeIfIdle must be called with mu held.
func (w *Watcher) closeIfIdle() error {
	if len(w.dirs) > 0 || w.fs == nil {
		return nil
	}
	err := w.fs.Close()
	w.fs = nil
	return err
}

// poll drains the pending events without blocking and flags every
// fragment whose file was written, created or replaced.
func (w *Watcher) poll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs == nil {
		return
	}
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			for _, f := range w.subs[filepath.Clean(ev.Name)] {
				f.touched = true
			}
		case err, ok := <-w.fs.Errors:
			if ok {
				logger.Logger().Warn("shader watcher error", "error", err)
			}
		default:
			return
		}
	}
}

// take reports and clears the pending edit flag of f.
func (w *Watcher) take(f *FileFragment) bool {
	w.poll()
	w.mu.Lock()
	defer w.mu.Unlock()
	t := f.touched
	f.touched = false
	return t
}

// Watching returns the number of watched directories.
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}
