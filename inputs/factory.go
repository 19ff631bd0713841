package inputs

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/richinsley/goshadergraph/audio"
	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/params"
)

// DeviceOpener creates the audio.Device for an audio input. It is a
// variable so tests and the CLI can substitute sources.
var DeviceOpener = OpenDevice

// OpenDevice opens the audio source named by cfg.Device. A microphone that
// fails to initialise falls back to a silent device.
func OpenDevice(cfg config.Input, dir string) (audio.Device, error) {
	switch cfg.Device {
	case "", "microphone", "mic":
		mic, err := audio.NewMicrophone(audio.DefaultSampleRate)
		if err != nil {
			logger.Logger().Warn("microphone unavailable, using silence", "err", err)
			return audio.NewNullDevice(audio.DefaultSampleRate), nil
		}
		return mic, nil
	case "file":
		if cfg.Path == "" {
			return nil, errors.New("audio file input needs a path")
		}
		return audio.NewFileDevice(resolve(dir, cfg.Path), audio.DefaultSampleRate, cfg.Realtime), nil
	case "null", "none":
		return audio.NewNullDevice(audio.DefaultSampleRate), nil
	}
	return nil, fmt.Errorf("unknown audio device %q", cfg.Device)
}

func resolve(dir, path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}

// FromConfig builds the provider described by cfg. Relative paths are
// taken from dir.
func FromConfig(name string, cfg config.Input, dir string) (Provider, error) {
	switch cfg.Type {
	case "audio":
		dev, err := DeviceOpener(cfg, dir)
		if err != nil {
			return nil, fmt.Errorf("audio input %q: %w", name, err)
		}
		return NewAudio(name, dev)
	case "image":
		return NewImage(name, resolve(dir, cfg.Path))
	case "values", "":
		vals := make(map[string]params.Value, len(cfg.Values))
		for k, v := range cfg.Values {
			vals[k] = v.Value
		}
		return NewValues(vals), nil
	}
	return nil, fmt.Errorf("input %q: unknown type %q", name, cfg.Type)
}

// FromProject builds every provider of p. On failure the providers built
// so far are closed.
func FromProject(p *config.Project) (map[string]Provider, error) {
	out := make(map[string]Provider, len(p.Inputs))
	for _, name := range slices.Sorted(maps.Keys(p.Inputs)) {
		prov, err := FromConfig(name, p.Inputs[name], p.Dir)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out[name] = prov
	}
	return out, nil
}

// CloseAll closes every provider and joins the errors.
func CloseAll(providers map[string]Provider) error {
	var errs []error
	for name, p := range providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("input %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
