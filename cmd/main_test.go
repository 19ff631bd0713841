package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadergraph/audio"
	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/inputs"
	"github.com/richinsley/goshadergraph/options"
)

type stopCounter struct {
	*audio.NullDevice
	stops *int
}

func (d stopCounter) Stop() error {
	*d.stops++
	return d.NullDevice.Stop()
}

func TestRunClosesInputsOnFailure(t *testing.T) {
	dir := t.TempDir()
	project, err := config.Parse([]byte(`
inputs:
  music: {type: audio, device: none}
filters:
  fx: {fragment: [missing.glsl]}
final_stage: {filter: fx}
`), dir)
	require.NoError(t, err)

	stops := 0
	open := inputs.DeviceOpener
	inputs.DeviceOpener = func(config.Input, string) (audio.Device, error) {
		return stopCounter{NullDevice: audio.NewNullDevice(audio.DefaultSampleRate), stops: &stops}, nil
	}
	defer func() { inputs.DeviceOpener = open }()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts := options.Register(fs)
	require.NoError(t, fs.Parse([]string{"-project", "p.yaml", "-frames", "2"}))

	err = run(opts, project)
	assert.ErrorContains(t, err, "missing.glsl")
	assert.Equal(t, 1, stops, "audio device stopped after the render error")
}
