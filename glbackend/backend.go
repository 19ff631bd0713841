// Package glbackend implements graphics.Backend on OpenGL 4.1 core.
//
// Every method must be called on the thread that owns the current GL
// context.
package glbackend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"maps"
	"slices"

	"github.com/go-gl/gl/v4.1-core/gl"
	gst "github.com/richinsley/goshadertranslator"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/translator"
)

// Options configures a Backend.
type Options struct {
	// Translate runs fragment sources through the shader translator,
	// from GLSL ES 3.00 to GLSL 4.10, before compiling.
	Translate bool
	// Translator is used when Translate is set. Nil uses the shared one.
	Translator *gst.ShaderTranslator
	// Present swaps the display buffers. Nil flushes only.
	Present func() error
	// DisplaySize reports the default framebuffer size in pixels.
	DisplaySize func() (int, int)
}

// Backend draws with the GL context current on the calling thread.
type Backend struct {
	opts     Options
	samplers map[samplerKey]uint32
}

var _ graphics.Backend = (*Backend)(nil)

// New loads the GL entry points. A context must be current.
func New(opts Options) (*Backend, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize gl: %w", err)
	}
	if opts.Translate && opts.Translator == nil {
		tr, err := translator.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to create shader translator: %w", err)
		}
		opts.Translator = tr
	}
	if opts.DisplaySize == nil {
		return nil, errors.New("glbackend: DisplaySize is required")
	}
	logger.Logger().Info("gl backend ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"translate", opts.Translate)
	return &Backend{opts: opts, samplers: make(map[samplerKey]uint32)}, nil
}

func (b *Backend) Draw(call graphics.DrawCall) error {
	p, ok := call.Program.(*Program)
	if !ok || p == nil || p.id == 0 {
		return errors.New("glbackend: draw without a program")
	}
	m, ok := call.Mesh.(*Mesh)
	if !ok || m == nil {
		return errors.New("glbackend: draw without a mesh")
	}

	var width, height int
	if call.Target != nil {
		t := call.Target.(*Texture)
		if err := t.bindFramebuffer(); err != nil {
			return err
		}
		width, height = t.width, t.height
	} else {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		width, height = b.opts.DisplaySize()
	}
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	gl.Viewport(0, 0, int32(width), int32(height))
	r, g, bl, a := clearColor(call.Clear)
	gl.ClearColor(r, g, bl, a)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	applyBlend(call.Blend)

	gl.UseProgram(p.id)
	units, err := b.setUniforms(p, call.Uniforms)
	if err != nil {
		return err
	}

	gl.BindVertexArray(m.vao)
	gl.DrawElements(topology(call.Topology), int32(m.count), gl.UNSIGNED_SHORT, nil)
	gl.BindVertexArray(0)

	for unit := range units {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, 0)
		gl.BindSampler(uint32(unit), 0)
	}
	gl.UseProgram(0)
	gl.Disable(gl.BLEND)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("glbackend: draw failed with gl error 0x%x", code)
	}
	return nil
}

// setUniforms binds every uniform the program uses and returns the number
// of texture units taken.
func (b *Backend) setUniforms(p *Program, set graphics.UniformSet) (int, error) {
	unit := 0
	for _, name := range slices.Sorted(maps.Keys(set)) {
		u := set[name]
		loc := p.location(name)
		if loc < 0 {
			continue
		}
		switch u.Kind {
		case graphics.UniformFloat:
			gl.Uniform1f(loc, u.Floats[0])
		case graphics.UniformVec2:
			gl.Uniform2f(loc, u.Floats[0], u.Floats[1])
		case graphics.UniformVec3:
			gl.Uniform3f(loc, u.Floats[0], u.Floats[1], u.Floats[2])
		case graphics.UniformVec4:
			gl.Uniform4f(loc, u.Floats[0], u.Floats[1], u.Floats[2], u.Floats[3])
		case graphics.UniformInt:
			gl.Uniform1i(loc, u.Int)
		case graphics.UniformBool:
			gl.Uniform1i(loc, boolInt(u.Bool))
		case graphics.UniformMat2:
			gl.UniformMatrix2fv(loc, 1, false, &u.Floats[0])
		case graphics.UniformMat3:
			gl.UniformMatrix3fv(loc, 1, false, &u.Floats[0])
		case graphics.UniformMat4:
			gl.UniformMatrix4fv(loc, 1, false, &u.Floats[0])
		case graphics.UniformSampler2D, graphics.UniformBufferSampler:
			t, ok := u.Sampled.Texture.(*Texture)
			if !ok || t == nil || t.id == 0 {
				return unit, fmt.Errorf("glbackend: uniform %q samples no texture", name)
			}
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(gl.TEXTURE_2D, t.id)
			gl.BindSampler(uint32(unit), b.sampler(u.Sampled))
			gl.Uniform1i(loc, int32(unit))
			if u.Kind == graphics.UniformBufferSampler {
				if l := p.location(name + "_length"); l >= 0 {
					gl.Uniform1i(l, int32(u.Length))
				}
			}
			unit++
		default:
			return unit, fmt.Errorf("glbackend: uniform %q has unknown kind %d", name, u.Kind)
		}
	}
	return unit, nil
}

func (b *Backend) Present() error {
	if b.opts.Present == nil {
		gl.Flush()
		return nil
	}
	return b.opts.Present()
}

func (b *Backend) GenerateMipmaps(t graphics.Texture) error {
	tex := t.(*Texture)
	if !tex.mipmaps {
		return fmt.Errorf("glbackend: texture %d has no mipmap storage", tex.id)
	}
	gl.BindTexture(gl.TEXTURE_2D, tex.id)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// ReadPixels reads t, or the default framebuffer when t is nil, top row
// first.
func (b *Backend) ReadPixels(t graphics.Texture) (*image.RGBA, error) {
	var width, height int
	if t != nil {
		tex := t.(*Texture)
		if err := tex.bindFramebuffer(); err != nil {
			return nil, err
		}
		width, height = tex.width, tex.height
	} else {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
		width, height = b.opts.DisplaySize()
	}
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return img, nil
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	flipRows(img.Pix, img.Stride)
	return img, nil
}

// Close releases the sampler objects.
func (b *Backend) Close() {
	for k, s := range b.samplers {
		gl.DeleteSamplers(1, &s)
		delete(b.samplers, k)
	}
}

func clearColor(c color.NRGBA64) (r, g, b, a float32) {
	const full = 0xffff
	return float32(c.R) / full, float32(c.G) / full, float32(c.B) / full, float32(c.A) / full
}

func applyBlend(m graphics.BlendMode) {
	switch m {
	case graphics.BlendAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	case graphics.BlendAdditive:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE)
	default:
		gl.Disable(gl.BLEND)
	}
}

func topology(t graphics.Topology) uint32 {
	if t == graphics.Triangles {
		return gl.TRIANGLES
	}
	return gl.TRIANGLE_STRIP
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// flipRows reverses the row order of pix in place.
func flipRows(pix []byte, stride int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, len(pix)/stride-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		z := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, z)
		copy(z, tmp)
	}
}
