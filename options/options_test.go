package options

import (
	"flag"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadergraph/config"
)

func parse(t *testing.T, args ...string) *Options {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o := Register(fs)
	require.NoError(t, fs.Parse(args))
	return o
}

func TestDefaults(t *testing.T) {
	o := parse(t)
	assert.ErrorContains(t, o.Validate(), "-project")
	assert.Equal(t, slog.LevelInfo, o.LogLevel())

	p := config.Default()
	p.FinalStage.Name = "final"
	o.Apply(&p)
	assert.Equal(t, 640, p.View.Width)
	assert.Equal(t, "final", o.Screenshot(&p))
}

func TestOverrides(t *testing.T) {
	o := parse(t, "-project", "p.yaml", "-width", "1920", "-height", "1080",
		"-verbose", "-screenshot-stage", "blur", "-frames", "3")
	require.NoError(t, o.Validate())
	assert.Equal(t, slog.LevelDebug, o.LogLevel())
	assert.Equal(t, 3, *o.Frames)

	p := config.Default()
	o.Apply(&p)
	assert.Equal(t, 1920, p.View.Width)
	assert.Equal(t, 1080, p.View.Height)
	assert.Equal(t, "blur", o.Screenshot(&p))
}

func TestValidateRejectsNegatives(t *testing.T) {
	o := parse(t, "-project", "p.yaml", "-width", "-1", "-frames", "-2")
	err := o.Validate()
	assert.ErrorContains(t, err, "-width")
	assert.ErrorContains(t, err, "-frames")

	o = parse(t, "-project", "p.yaml", "-gpu")
	assert.ErrorContains(t, o.Validate(), "-gpu needs -frames")
}
