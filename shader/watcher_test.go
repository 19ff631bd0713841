package shader

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManyWatchedFragmentsShareOneWatcher(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher()

	const n = 200
	frags := make([]*FileFragment, 0, n)
	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("part%03d.glsl", i))
		writeFile(t, p, "// part")
		f, err := OpenFileFragment(p, w)
		require.NoError(t, err, "fragment %d", i)
		frags = append(frags, f)
	}
	assert.Equal(t, 1, w.Watching())

	for _, f := range frags {
		require.NoError(t, f.Close())
	}
	assert.Zero(t, w.Watching())
	assert.Nil(t, w.fs, "idle watcher is closed")
}

func TestWatcherRoutesEditsByPath(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher()
	pa := filepath.Join(dir, "a.glsl")
	pb := filepath.Join(dir, "b.glsl")
	writeFile(t, pa, "a")
	writeFile(t, pb, "b")

	a, err := OpenFileFragment(pa, w)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenFileFragment(pb, w)
	require.NoError(t, err)
	defer b.Close()
	// a second fragment on the same file is notified as well
	a2, err := OpenFileFragment(pa, w)
	require.NoError(t, err)
	defer a2.Close()

	writeFile(t, pa, "a edited")
	assert.Eventually(t, func() bool {
		ok, _ := a.CheckChanged()
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		ok, _ := a2.CheckChanged()
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	changed, err := b.CheckChanged()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "b", b.Text())
	assert.Equal(t, "a edited", a2.Text())
}

func TestWatcherKeepsOtherDirectories(t *testing.T) {
	w := NewWatcher()
	d1, d2 := t.TempDir(), t.TempDir()
	p1 := filepath.Join(d1, "x.glsl")
	p2 := filepath.Join(d2, "y.glsl")
	writeFile(t, p1, "x")
	writeFile(t, p2, "y")

	f1, err := OpenFileFragment(p1, w)
	require.NoError(t, err)
	f2, err := OpenFileFragment(p2, w)
	require.NoError(t, err)
	defer f2.Close()
	assert.Equal(t, 2, w.Watching())

	require.NoError(t, f1.Close())
	assert.Equal(t, 1, w.Watching())

	writeFile(t, p2, "y edited")
	assert.Eventually(t, func() bool {
		ok, _ := f2.CheckChanged()
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}
