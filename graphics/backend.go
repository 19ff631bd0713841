// Package graphics describes the GPU capabilities the stage engine needs.
// The engine never talks to a graphics API directly; it drives a Backend.
package graphics

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/richinsley/goshadergraph/params"
)

// ShaderStage identifies which program stage a compile error belongs to.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageLink
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageLink:
		return "link"
	}
	return fmt.Sprintf("ShaderStage(%d)", s)
}

// CompileError is returned by Backend.Compile. Message is the raw driver log.
type CompileError struct {
	Stage   ShaderStage
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader: %s", e.Stage, e.Message)
}

// Program is a linked shader program.
type Program interface {
	Release()
}

// Texture is a 2D (or 1D buffer) texture owned by the backend.
type Texture interface {
	Size() image.Point
	Release()
}

// Mesh is a vertex and index buffer pair.
type Mesh interface {
	Release()
}

// Vertex is the layout of the full-screen geometry.
type Vertex struct {
	Position [2]float32
	TexCoord [2]float32
}

type Topology uint8

const (
	TriangleStrip Topology = iota
	Triangles
)

// Wrap is the texture coordinate wrap mode of a sampler.
type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClamp
	WrapBorderClamp
)

// Filter is a minify or magnify sampler filter.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
	FilterLinearMipmapLinear
)

// SamplerFilters returns the minify and magnify filters used for s.
func SamplerFilters(s params.Sampler) (minFilter, magFilter Filter) {
	switch s {
	case params.SamplerNearest:
		return FilterNearest, FilterNearest
	case params.SamplerMipmaps:
		return FilterLinearMipmapLinear, FilterLinear
	default:
		return FilterLinear, FilterLinear
	}
}

// Sampled is a texture bound together with its sampler state.
type Sampled struct {
	Texture Texture
	Wrap    Wrap
	Min     Filter
	Mag     Filter
}

// Sample binds t with the filters implied by s and the given wrap mode.
func Sample(t Texture, wrap Wrap, s params.Sampler) Sampled {
	minFilter, magFilter := SamplerFilters(s)
	return Sampled{Texture: t, Wrap: wrap, Min: minFilter, Mag: magFilter}
}

// UniformKind tags the variant held by a Uniform.
type UniformKind uint8

const (
	UniformFloat UniformKind = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformInt
	UniformBool
	UniformMat2
	UniformMat3
	UniformMat4
	UniformSampler2D
	UniformBufferSampler
)

// Uniform is a value ready to be bound to a program. Floats holds vector
// lanes or a column-major matrix; Sampled is set for the sampler kinds.
type Uniform struct {
	Kind    UniformKind
	Floats  [16]float32
	Int     int32
	Bool    bool
	Sampled Sampled
	// Length is the element count of a buffer sampler.
	Length int
}

// IsSampler reports whether u binds a texture.
func (u Uniform) IsSampler() bool {
	return u.Kind == UniformSampler2D || u.Kind == UniformBufferSampler
}

// UniformSet is the flat set of uniforms of one draw call.
type UniformSet map[string]Uniform

// BlendMode controls how a draw combines with the cleared target.
type BlendMode uint8

const (
	BlendReplace BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// DrawCall is one full draw: clear the target, then draw Mesh with Program.
// A nil Target draws to the display surface.
type DrawCall struct {
	Mesh     Mesh
	Topology Topology
	Program  Program
	Uniforms UniformSet
	Target   Texture
	Clear    color.NRGBA64
	Blend    BlendMode
}

// Backend is the GPU capability surface consumed by the engine.
type Backend interface {
	// Compile builds a program. Failures are *CompileError.
	Compile(vertex, fragment string) (Program, error)
	NewMesh(vertices []Vertex, indices []uint16, topology Topology) (Mesh, error)
	// AllocateTexture creates an empty render target. With mipmaps set the
	// texture carries storage for GenerateMipmaps.
	AllocateTexture(width, height int, precision params.Precision, mipmaps bool) (Texture, error)
	// NewImageTexture uploads packed 8-bit RGB pixels.
	NewImageTexture(width, height int, rgb []byte, mipmaps bool) (Texture, error)
	// NewBufferTexture uploads a one-row float texture.
	NewBufferTexture(data []float32) (Texture, error)
	Draw(call DrawCall) error
	// Present shows the last display draw.
	Present() error
	// GenerateMipmaps assumes t was allocated with mipmap storage.
	GenerateMipmaps(t Texture) error
	// ReadPixels reads t back as RGBA. A nil t reads the display surface.
	ReadPixels(t Texture) (*image.RGBA, error)
}

func (m BlendMode) String() string {
	switch m {
	case BlendReplace:
		return "replace"
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	}
	return fmt.Sprintf("BlendMode(%d)", m)
}

// ParseBlendMode accepts "replace", "alpha" and "additive". The empty string
// is BlendReplace.
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return BlendReplace, nil
	case "alpha":
		return BlendAlpha, nil
	case "additive", "add":
		return BlendAdditive, nil
	}
	return BlendReplace, fmt.Errorf("unknown blend mode %q", s)
}
