package shader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestResolveSearchOrder(t *testing.T) {
	project := t.TempDir()
	lib := t.TempDir()
	writeFile(t, filepath.Join(project, "a.glsl"), "project")
	writeFile(t, filepath.Join(lib, "a.glsl"), "library")
	writeFile(t, filepath.Join(lib, "common", "noise.glsl"), "noise")

	r := Resolver{Project: []string{project}, Library: lib}

	d, err := r.Resolve("a.glsl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, "a.glsl"), d.Path)
	assert.True(t, d.Watch)

	d, err = r.Resolve("common/noise.glsl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib, "common", "noise.glsl"), d.Path)

	d, err = r.Resolve("#common/noise.glsl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib, "common", "noise.glsl"), d.Path)
	assert.False(t, d.Watch, "library fragments are not reloaded")

	_, err = r.Resolve("missing.glsl")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = r.Resolve("")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestComposerConcatenates(t *testing.T) {
	c := NewComposer(Static("a"), Static("b"))
	c.Push(Static("c"))
	assert.Equal(t, "a\nb\nc", c.Text())
	changed, err := c.CheckChanged()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 3, c.Len())
}

func TestComposeFailsOnMissingFragment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.glsl"), "ok")
	_, err := Resolver{Project: []string{dir}}.Compose([]string{"ok.glsl", "nope.glsl"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileFragmentReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frag.glsl")
	writeFile(t, path, "void main() {}")

	f, err := NewFileFragment(path, true)
	require.NoError(t, err)
	defer f.Close()

	changed, err := f.CheckChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	writeFile(t, path, "void main() { discard; }")
	assert.Eventually(t, func() bool {
		ok, _ := f.CheckChanged()
		return ok
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "void main() { discard; }", f.Text())

	changed, err = f.CheckChanged()
	require.NoError(t, err)
	assert.False(t, changed, "no new edit since the last check")
}

func TestUnwatchedFragmentNeverChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frag.glsl")
	writeFile(t, path, "one")

	f, err := NewFileFragment(path, false)
	require.NoError(t, err)
	writeFile(t, path, "two")
	changed, err := f.CheckChanged()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "one", f.Text())
}

func TestParseDiagnostic(t *testing.T) {
	src := "void main() {\n  vec3 x = 1;\n}"
	d := ParseDiagnostic("0:2(8): error: initializer of type int cannot be assigned\n", src)
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, 8, d.Column)
	assert.Equal(t, "  vec3 x = 1;", d.SourceLine)
	assert.Equal(t, "error: initializer of type int cannot be assigned", d.Message)
	assert.Contains(t, d.String(), "       ^")

	d = ParseDiagnostic("link failed: something odd", src)
	assert.Zero(t, d.Line)
	assert.Equal(t, "link failed: something odd", d.String())

	d = ParseDiagnostic("0:99(1): error: past the end", src)
	assert.Equal(t, 99, d.Line)
	assert.Empty(t, d.SourceLine)
}
