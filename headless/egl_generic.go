//go:build !linux

// Package headless creates an offscreen OpenGL context through EGL. Only
// Linux is supported.
package headless

import "errors"

// Headless is unavailable on this platform.
type Headless struct{}

func New(width, height int) (*Headless, error) {
	return nil, errors.New("egl headless rendering is not supported on this platform")
}

func (h *Headless) MakeCurrent()       {}
func (h *Headless) Size() (int, int)   { return 0, 0 }
func (h *Headless) SwapBuffers() error { return nil }
func (h *Headless) Shutdown()          {}
