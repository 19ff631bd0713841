package glfwcontext

// mouseTracker remembers where the left button last went down.
type mouseTracker struct {
	clickX, clickY float64
	wasDown        bool
}

// update takes a cursor position in framebuffer pixels, top-left origin,
// and returns x, y, clickX, clickY with a bottom-left origin. The click
// pair is negated while the button is up.
func (m *mouseTracker) update(x, y, fbHeight float64, down bool) [4]float32 {
	if down && !m.wasDown {
		m.clickX, m.clickY = x, y
	}
	m.wasDown = down

	clickX := float32(m.clickX)
	clickY := float32(fbHeight - m.clickY)
	if !down {
		clickX, clickY = -clickX, -clickY
	}
	return [4]float32{float32(x), float32(fbHeight - y), clickX, clickY}
}
