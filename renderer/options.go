package renderer

import (
	"image"

	"github.com/richinsley/goshadergraph/config"
)

// Options configures a Graph's output and clock.
type Options struct {
	Resolution image.Point
	// Dynamic allows SetResolution to reallocate buffers.
	Dynamic bool
	// TargetFPS drives the clock in locked-speed mode.
	TargetFPS float64
	// LockedSpeed advances time by whole frames instead of wall-clock time.
	LockedSpeed bool
	BPM         float64
}

// OptionsFromView converts a project's view section.
func OptionsFromView(v config.View) Options {
	return Options{
		Resolution:  image.Pt(v.Width, v.Height),
		Dynamic:     v.Dynamic,
		TargetFPS:   v.TargetFPS,
		LockedSpeed: v.LockedSpeed,
		BPM:         v.BPM,
	}
}
