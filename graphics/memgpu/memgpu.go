// Package memgpu is an in-memory graphics.Backend. It compiles nothing and
// rasterises nothing; it records every call so the engine can be driven
// headless and inspected in tests.
//
// A shader source line containing "#error" fails compilation with a
// Mesa-style log ("0:LINE(COL): error: ..."). Every draw fills its target
// with a colour derived from the program ID, so read-backs reveal which
// program produced a texture.
package memgpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

// Program is a recorded program.
type Program struct {
	ID       int
	Vertex   string
	Fragment string
	Released bool
}

func (p *Program) Release() { p.Released = true }

// Texture is a recorded texture.
type Texture struct {
	ID        int
	Width     int
	Height    int
	Precision params.Precision
	Mipmaps   bool
	Buffer    []float32
	RGB       []byte
	Released  bool

	// Fill is the colour of the last draw into the texture.
	Fill color.RGBA
	// Writer is the ID of the program that last drew into the texture.
	Writer int
	// Writes counts draws into the texture.
	Writes int
	// MipmapGenerations counts GenerateMipmaps calls.
	MipmapGenerations int
}

func (t *Texture) Size() image.Point { return image.Pt(t.Width, t.Height) }

func (t *Texture) Release() { t.Released = true }

// Mesh is a recorded mesh.
type Mesh struct {
	Vertices []graphics.Vertex
	Indices  []uint16
	Topology graphics.Topology
	Released bool
}

func (m *Mesh) Release() { m.Released = true }

// Draw is one recorded draw call.
type Draw struct {
	Program  *Program
	Target   *Texture
	Uniforms graphics.UniformSet
	Clear    color.NRGBA64
	Blend    graphics.BlendMode
}

// Backend records calls. The zero value is not usable; call New.
type Backend struct {
	nextID   int
	Programs []*Program
	Textures []*Texture
	Draws    []Draw
	Presents int

	// Display stands in for the window surface.
	Display *Texture

	// AllocateHook, when set, is consulted before every texture allocation
	// and may veto it.
	AllocateHook func(width, height int) error
	// DrawHook, when set, may veto a draw.
	DrawHook func(call graphics.DrawCall) error
}

var _ graphics.Backend = (*Backend)(nil)

// New returns a backend whose display surface has the given size.
func New(width, height int) *Backend {
	b := &Backend{}
	b.Display = &Texture{ID: b.id(), Width: width, Height: height, Precision: params.PrecisionU8}
	return b
}

func (b *Backend) id() int {
	b.nextID++
	return b.nextID
}

func (b *Backend) Compile(vertex, fragment string) (graphics.Program, error) {
	if msg, ok := scriptedError(vertex); ok {
		return nil, &graphics.CompileError{Stage: graphics.StageVertex, Message: msg}
	}
	if msg, ok := scriptedError(fragment); ok {
		return nil, &graphics.CompileError{Stage: graphics.StageFragment, Message: msg}
	}
	p := &Program{ID: b.id(), Vertex: vertex, Fragment: fragment}
	b.Programs = append(b.Programs, p)
	return p, nil
}

func scriptedError(src string) (string, bool) {
	for i, line := range strings.Split(src, "\n") {
		col := strings.Index(line, "#error")
		if col < 0 {
			continue
		}
		msg := strings.TrimSpace(line[col+len("#error"):])
		if msg == "" {
			msg = "#error directive"
		}
		return fmt.Sprintf("0:%d(%d): error: %s\n", i+1, col+1, msg), true
	}
	return "", false
}

func (b *Backend) NewMesh(vertices []graphics.Vertex, indices []uint16, topology graphics.Topology) (graphics.Mesh, error) {
	if len(vertices) == 0 {
		return nil, errors.New("memgpu: empty mesh")
	}
	return &Mesh{Vertices: vertices, Indices: indices, Topology: topology}, nil
}

func (b *Backend) AllocateTexture(width, height int, precision params.Precision, mipmaps bool) (graphics.Texture, error) {
	if b.AllocateHook != nil {
		if err := b.AllocateHook(width, height); err != nil {
			return nil, err
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("memgpu: invalid texture size %dx%d", width, height)
	}
	t := &Texture{ID: b.id(), Width: width, Height: height, Precision: precision, Mipmaps: mipmaps}
	b.Textures = append(b.Textures, t)
	return t, nil
}

func (b *Backend) NewImageTexture(width, height int, rgb []byte, mipmaps bool) (graphics.Texture, error) {
	tex, err := b.AllocateTexture(width, height, params.PrecisionU8, mipmaps)
	if err != nil {
		return nil, err
	}
	t := tex.(*Texture)
	t.RGB = append([]byte(nil), rgb...)
	return t, nil
}

func (b *Backend) NewBufferTexture(data []float32) (graphics.Texture, error) {
	tex, err := b.AllocateTexture(max(len(data), 1), 1, params.PrecisionF32, false)
	if err != nil {
		return nil, err
	}
	t := tex.(*Texture)
	t.Buffer = append([]float32(nil), data...)
	return t, nil
}

// Draw validates the call and records it. Sampling the target texture in
// the same draw is rejected.
func (b *Backend) Draw(call graphics.DrawCall) error {
	if b.DrawHook != nil {
		if err := b.DrawHook(call); err != nil {
			return err
		}
	}
	p, ok := call.Program.(*Program)
	if !ok || p == nil {
		return errors.New("memgpu: draw without a program")
	}
	if p.Released {
		return fmt.Errorf("memgpu: program %d was released", p.ID)
	}
	target := b.Display
	var offscreen *Texture
	if call.Target != nil {
		offscreen = call.Target.(*Texture)
		target = offscreen
		if target.Released {
			return fmt.Errorf("memgpu: draw into released texture %d", target.ID)
		}
	}
	for name, u := range call.Uniforms {
		if !u.IsSampler() {
			continue
		}
		t, ok := u.Sampled.Texture.(*Texture)
		if !ok || t == nil {
			return fmt.Errorf("memgpu: uniform %q samples no texture", name)
		}
		if t.Released {
			return fmt.Errorf("memgpu: uniform %q samples released texture %d", name, t.ID)
		}
		if t == target {
			return fmt.Errorf("memgpu: uniform %q samples the draw target %d", name, t.ID)
		}
		if u.Sampled.Min == graphics.FilterLinearMipmapLinear && !t.Mipmaps {
			return fmt.Errorf("memgpu: uniform %q needs mipmaps on texture %d", name, t.ID)
		}
	}

	uniforms := make(graphics.UniformSet, len(call.Uniforms))
	for k, v := range call.Uniforms {
		uniforms[k] = v
	}
	target.Fill = ProgramColor(p.ID)
	target.Writer = p.ID
	target.Writes++
	b.Draws = append(b.Draws, Draw{
		Program:  p,
		Target:   offscreen,
		Uniforms: uniforms,
		Clear:    call.Clear,
		Blend:    call.Blend,
	})
	return nil
}

func (b *Backend) Present() error {
	b.Presents++
	return nil
}

func (b *Backend) GenerateMipmaps(t graphics.Texture) error {
	tex := t.(*Texture)
	if !tex.Mipmaps {
		return fmt.Errorf("memgpu: texture %d has no mipmap storage", tex.ID)
	}
	tex.MipmapGenerations++
	return nil
}

func (b *Backend) ReadPixels(t graphics.Texture) (*image.RGBA, error) {
	tex := b.Display
	if t != nil {
		tex = t.(*Texture)
	}
	if tex.Released {
		return nil, fmt.Errorf("memgpu: read of released texture %d", tex.ID)
	}
	img := image.NewRGBA(image.Rect(0, 0, tex.Width, tex.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: tex.Fill}, image.Point{}, draw.Src)
	return img, nil
}

// ProgramColor is the fill colour a draw with program id leaves behind.
func ProgramColor(id int) color.RGBA {
	return color.RGBA{R: uint8(id), G: uint8(id >> 8), B: 0x80, A: 0xff}
}

// Live returns the textures that have not been released.
func (b *Backend) Live() []*Texture {
	var out []*Texture
	for _, t := range b.Textures {
		if !t.Released {
			out = append(out, t)
		}
	}
	return out
}

// LastDraw returns the most recent draw, or the zero Draw.
func (b *Backend) LastDraw() Draw {
	if len(b.Draws) == 0 {
		return Draw{}
	}
	return b.Draws[len(b.Draws)-1]
}
