package graphics

// Context is the window the display stage is presented on.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// SwapBuffers shows the last frame drawn to the default framebuffer.
	SwapBuffers() error
	PollEvents()
	GetFramebufferSize() (int, int)
	Time() float64
	// GetMouseInput returns x, y, clickX, clickY in framebuffer pixels with
	// the origin at the bottom left. The click coordinates are negative
	// while the button is up.
	GetMouseInput() [4]float32
}
