package glbackend

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

// Texture is a GL 2D texture. Render targets get a framebuffer on first
// use.
type Texture struct {
	id      uint32
	fbo     uint32
	width   int
	height  int
	mipmaps bool
}

func (t *Texture) Size() image.Point { return image.Pt(t.width, t.height) }

func (t *Texture) Release() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

func (t *Texture) bindFramebuffer() error {
	if t.id == 0 {
		return fmt.Errorf("glbackend: texture was released")
	}
	if t.fbo == 0 {
		gl.GenFramebuffers(1, &t.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.id, 0)
		if gl.CheckFramebufferStatus(gl.FRAMEBUFFER) != gl.FRAMEBUFFER_COMPLETE {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			gl.DeleteFramebuffers(1, &t.fbo)
			t.fbo = 0
			return fmt.Errorf("framebuffer for texture %d is not complete", t.id)
		}
		return nil
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	return nil
}

// textureFormat returns the internal format, pixel format and type of a
// render target of the given precision.
func textureFormat(p params.Precision) (internal int32, format, typ uint32) {
	switch p {
	case params.PrecisionU8:
		return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
	case params.PrecisionF16:
		return gl.RGBA16F, gl.RGBA, gl.FLOAT
	default:
		return gl.RGBA32F, gl.RGBA, gl.FLOAT
	}
}

func newTexture(width, height int, internal int32, format, typ uint32, pixels []byte, mipmaps bool) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("glbackend: invalid texture size %dx%d", width, height)
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	if pixels != nil {
		gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, format, typ, gl.Ptr(pixels))
	} else {
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, format, typ, nil)
	}
	if mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, fmt.Errorf("glbackend: allocating %dx%d texture failed with gl error 0x%x", width, height, code)
	}
	return &Texture{id: id, width: width, height: height, mipmaps: mipmaps}, nil
}

func (b *Backend) AllocateTexture(width, height int, precision params.Precision, mipmaps bool) (graphics.Texture, error) {
	internal, format, typ := textureFormat(precision)
	return newTexture(width, height, internal, format, typ, nil, mipmaps)
}

func (b *Backend) NewImageTexture(width, height int, rgb []byte, mipmaps bool) (graphics.Texture, error) {
	if len(rgb) != width*height*3 {
		return nil, fmt.Errorf("glbackend: %dx%d image needs %d bytes, got %d", width, height, width*height*3, len(rgb))
	}
	return newTexture(width, height, gl.RGB8, gl.RGB, gl.UNSIGNED_BYTE, rgb, mipmaps)
}

// NewBufferTexture uploads data as a one-row R32F texture.
func (b *Backend) NewBufferTexture(data []float32) (graphics.Texture, error) {
	if len(data) == 0 {
		data = []float32{0}
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R32F, int32(len(data)), 1, 0, gl.RED, gl.FLOAT, gl.Ptr(data))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, fmt.Errorf("glbackend: buffer texture of %d floats failed with gl error 0x%x", len(data), code)
	}
	return &Texture{id: id, width: len(data), height: 1}, nil
}
