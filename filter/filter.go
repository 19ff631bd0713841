// Package filter wraps one shader program: its source fragments, the
// compiled program, the full-screen quad it draws and the default uniforms
// every filter exposes.
package filter

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/params"
	"github.com/richinsley/goshadergraph/shader"
	"github.com/richinsley/goshadergraph/uniform"
)

// Clear colours. Offscreen targets are cleared to a sentinel so that
// undrawn regions stand out.
var (
	OffscreenClear = color.NRGBA64{R: 0xffff, G: 0, B: 0xffff, A: 0}
	DisplayClear   = color.NRGBA64{}
)

var quad = []graphics.Vertex{
	{Position: [2]float32{-1, -1}, TexCoord: [2]float32{0, 0}},
	{Position: [2]float32{-1, 1}, TexCoord: [2]float32{0, 1}},
	{Position: [2]float32{1, 1}, TexCoord: [2]float32{1, 1}},
	{Position: [2]float32{1, -1}, TexCoord: [2]float32{1, 0}},
}

var quadIndices = []uint16{1, 2, 0, 3}

// FrameState is the per-frame data behind the default uniforms.
type FrameState struct {
	Resolution image.Point
	Time       float64
	Beat       float64
	Frame      int
	Mouse      [4]float32
}

// Mode holds per-stage draw settings.
type Mode struct {
	Blend graphics.BlendMode
}

// Input is a value supplied by the caller for one draw.
type Input struct {
	Uniform graphics.Uniform
	Sampler params.Sampler
}

// Target is another stage's output bound as a texture.
type Target struct {
	Texture graphics.Texture
	Sampler params.Sampler
}

// CompileFailure reports a program that did not build.
type CompileFailure struct {
	Filter     string
	Stage      graphics.ShaderStage
	Diagnostic shader.Diagnostic
	Err        error
}

func (e *CompileFailure) Error() string {
	return fmt.Sprintf("filter %q: %s shader: %s", e.Filter, e.Stage, e.Diagnostic)
}

func (e *CompileFailure) Unwrap() error { return e.Err }

// Filter is a shader program plus the state needed to draw it.
type Filter struct {
	name    string
	backend graphics.Backend

	vertex   *shader.Composer
	fragment *shader.Composer

	vertexText   string
	fragmentText string
	program      graphics.Program
	mesh         graphics.Mesh

	inputs   []string
	defaults map[string]uniform.Binding
	builtins graphics.UniformSet
}

// FromConfig resolves the filter's fragments through r and builds it. A
// filter without vertex fragments uses shader.DefaultVertex.
func FromConfig(b graphics.Backend, r shader.Resolver, name string, cfg config.Filter) (*Filter, error) {
	if len(cfg.Fragment) == 0 {
		return nil, fmt.Errorf("filter %q: no fragment shader", name)
	}
	vertex := shader.NewComposer(shader.Static(shader.DefaultVertex))
	if len(cfg.Vertex) > 0 {
		var err error
		if vertex, err = r.Compose(cfg.Vertex); err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}
	}
	fragment, err := r.Compose(cfg.Fragment)
	if err != nil {
		vertex.Close()
		return nil, fmt.Errorf("filter %q: %w", name, err)
	}

	defaults := make(map[string]params.Value, len(cfg.Variables))
	for k, v := range cfg.Variables {
		defaults[k] = v.Value
	}
	f, err := New(b, name, vertex, fragment, cfg.Inputs, defaults)
	if err != nil {
		vertex.Close()
		fragment.Close()
		return nil, err
	}
	return f, nil
}

// New builds the quad and compiles the program. Defaults that cannot be
// converted to uniforms are skipped with a warning.
func New(b graphics.Backend, name string, vertex, fragment *shader.Composer, inputs []string, defaults map[string]params.Value) (*Filter, error) {
	mesh, err := b.NewMesh(quad, quadIndices, graphics.TriangleStrip)
	if err != nil {
		return nil, fmt.Errorf("filter %q: failed to create quad: %w", name, err)
	}
	f := &Filter{
		name:         name,
		backend:      b,
		vertex:       vertex,
		fragment:     fragment,
		vertexText:   vertex.Text(),
		fragmentText: fragment.Text(),
		mesh:         mesh,
		inputs:       slices.Clone(inputs),
		defaults:     make(map[string]uniform.Binding, len(defaults)),
	}
	f.program, err = f.compile(f.vertexText, f.fragmentText)
	if err != nil {
		mesh.Release()
		return nil, err
	}
	for k, v := range defaults {
		bind, err := uniform.FromValue(b, v, false)
		if err != nil {
			logger.Logger().Warn("skipping filter default", "filter", name, "name", k, "error", err)
			continue
		}
		f.defaults[k] = bind
	}
	f.builtins = builtins(FrameState{})
	return f, nil
}

func (f *Filter) compile(vertex, fragment string) (graphics.Program, error) {
	p, err := f.backend.Compile(vertex, fragment)
	if err == nil {
		return p, nil
	}
	var ce *graphics.CompileError
	if !errors.As(err, &ce) {
		return nil, &CompileFailure{
			Filter:     f.name,
			Stage:      graphics.StageLink,
			Diagnostic: shader.Diagnostic{Message: err.Error()},
			Err:        err,
		}
	}
	source := fragment
	if ce.Stage == graphics.StageVertex {
		source = vertex
	}
	return nil, &CompileFailure{
		Filter:     f.name,
		Stage:      ce.Stage,
		Diagnostic: shader.ParseDiagnostic(ce.Message, source),
		Err:        err,
	}
}

func (f *Filter) Name() string { return f.name }

// Inputs returns the uniform names the filter accepts from stages. An
// empty list accepts every name.
func (f *Filter) Inputs() []string { return f.inputs }

func (f *Filter) VertexText() string { return f.vertexText }

func (f *Filter) FragmentText() string { return f.fragmentText }

func (f *Filter) Program() graphics.Program { return f.program }

// Uniforms returns the default uniforms computed by the last Update.
func (f *Filter) Uniforms() graphics.UniformSet { return f.builtins }

// Update reloads edited fragments and recompiles when the text changed,
// then recomputes the default uniforms. A failed compile leaves the
// previous program in place and is returned as *CompileFailure.
func (f *Filter) Update(state FrameState) error {
	vChanged, err := f.vertex.CheckChanged()
	if err != nil {
		logger.Logger().Warn("vertex shader reload failed", "filter", f.name, "error", err)
	}
	fChanged, err := f.fragment.CheckChanged()
	if err != nil {
		logger.Logger().Warn("fragment shader reload failed", "filter", f.name, "error", err)
	}

	var failure error
	if vChanged || fChanged {
		f.vertexText = f.vertex.Text()
		f.fragmentText = f.fragment.Text()
		p, err := f.compile(f.vertexText, f.fragmentText)
		if err != nil {
			failure = err
		} else {
			f.program.Release()
			f.program = p
			logger.Logger().Info("filter recompiled", "filter", f.name)
		}
	}

	f.builtins = builtins(state)
	return failure
}

func builtins(s FrameState) graphics.UniformSet {
	return graphics.UniformSet{
		"matrix":      uniform.Mat4(uniform.Identity),
		"iResolution": uniform.Vec3(float32(s.Resolution.X), float32(s.Resolution.Y), 0),
		"iMouse":      uniform.Vec4(s.Mouse[0], s.Mouse[1], s.Mouse[2], s.Mouse[3]),
		"iTime":       uniform.Float(float32(s.Time)),
		"iBeat":       uniform.Float(float32(s.Beat)),
		"iFrame":      uniform.Int(int32(s.Frame)),
	}
}

func (f *Filter) accepts(name string) bool {
	return len(f.inputs) == 0 || slices.Contains(f.inputs, name)
}

// Uniforms are layered by precedence: targets, then caller inputs, then
// the filter's own defaults. A name set by an earlier layer is kept.
func (f *Filter) uniformSet(inputs map[string]Input, targets map[string]Target) graphics.UniformSet {
	set := make(graphics.UniformSet, len(targets)+len(inputs)+len(f.defaults)+len(f.builtins))
	for name, t := range targets {
		if t.Texture == nil || !f.accepts(name) {
			continue
		}
		set[name] = graphics.Uniform{
			Kind:    graphics.UniformSampler2D,
			Sampled: graphics.Sample(t.Texture, graphics.WrapRepeat, t.Sampler),
		}
	}
	for name, in := range inputs {
		if _, taken := set[name]; taken || !f.accepts(name) {
			continue
		}
		set[name] = uniform.Resample(in.Uniform, in.Sampler)
	}
	for name, u := range f.builtins {
		if _, taken := set[name]; !taken {
			set[name] = u
		}
	}
	for name, b := range f.defaults {
		if _, taken := set[name]; !taken {
			set[name] = uniform.Resample(b.Uniform, params.SamplerLinear)
		}
	}
	return set
}

// Render draws the quad. With a target the draw goes offscreen; without
// one it goes to the display, which is then presented.
func (f *Filter) Render(inputs map[string]Input, targets map[string]Target, target graphics.Texture, mode Mode) error {
	call := graphics.DrawCall{
		Mesh:     f.mesh,
		Topology: graphics.TriangleStrip,
		Program:  f.program,
		Uniforms: f.uniformSet(inputs, targets),
		Target:   target,
		Clear:    OffscreenClear,
		Blend:    mode.Blend,
	}
	if target == nil {
		call.Clear = DisplayClear
	}
	if err := f.backend.Draw(call); err != nil {
		return fmt.Errorf("filter %q: draw failed: %w", f.name, err)
	}
	if target == nil {
		if err := f.backend.Present(); err != nil {
			return fmt.Errorf("filter %q: present failed: %w", f.name, err)
		}
	}
	return nil
}

// Close releases the program, the quad and the default bindings and stops
// watching the source files.
func (f *Filter) Close() error {
	f.program.Release()
	f.mesh.Release()
	for _, b := range f.defaults {
		b.Release()
	}
	f.defaults = nil
	return errors.Join(f.vertex.Close(), f.fragment.Close())
}
