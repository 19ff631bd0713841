package renderer

import (
	"fmt"
	"image"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

// RenderBuffer is the texture pair of one stage. The front texture holds
// the last completed output and is what other stages sample; the back
// texture is the next draw target.
type RenderBuffer struct {
	textures  [2]graphics.Texture
	size      image.Point
	precision params.Precision
}

// NewRenderBuffer allocates both textures with mipmap storage. Nothing is
// left allocated on failure.
func NewRenderBuffer(b graphics.Backend, size image.Point, precision params.Precision) (*RenderBuffer, error) {
	rb := &RenderBuffer{size: size, precision: precision}
	for i := range rb.textures {
		t, err := b.AllocateTexture(size.X, size.Y, precision, true)
		if err != nil {
			rb.Release()
			return nil, fmt.Errorf("failed to create a rendering buffer: %w", err)
		}
		rb.textures[i] = t
	}
	return rb, nil
}

// Front is the texture read by consumers.
func (rb *RenderBuffer) Front() graphics.Texture { return rb.textures[0] }

// Back is the texture the next draw writes.
func (rb *RenderBuffer) Back() graphics.Texture { return rb.textures[1] }

func (rb *RenderBuffer) Size() image.Point { return rb.size }

func (rb *RenderBuffer) Precision() params.Precision { return rb.precision }

// rotate promotes the just written back texture to the front.
func (rb *RenderBuffer) rotate() {
	rb.textures[0], rb.textures[1] = rb.textures[1], rb.textures[0]
}

func (rb *RenderBuffer) Release() {
	for i, t := range rb.textures {
		if t != nil {
			t.Release()
			rb.textures[i] = nil
		}
	}
}
