// Package renderer runs the stage graph: every frame it ingests provider
// values, updates filters and stages, draws each stage into its buffer
// pair and finally draws the final stage to the display.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
	"time"

	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/filter"
	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/inputs"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/params"
	"github.com/richinsley/goshadergraph/shader"
	"github.com/richinsley/goshadergraph/stage"
	"github.com/richinsley/goshadergraph/uniform"
)

var (
	ErrIndexOutOfRange = errors.New("stage index out of range")
	ErrUnknownFilter   = errors.New("unknown filter")
	ErrDuplicateStage  = errors.New("duplicate stage name")
)

// Graph owns the filters, the ordered stages with their buffer pairs and
// the final stage. It must be used from a single goroutine.
type Graph struct {
	backend    graphics.Backend
	opts       Options
	resolution image.Point

	filters map[string]*filter.Filter
	stages  []*stage.Stage
	buffers []*RenderBuffer
	final   *stage.Stage

	// Written only while ingesting provider values.
	env   map[string]params.Value
	cache map[string]uniform.Binding

	beat  float64
	time  float64
	bpm   float64
	frame int
	mouse [4]float32

	now   func() time.Time
	start time.Time
	last  time.Time
}

// New builds a graph and allocates a buffer pair per stage at
// opts.Resolution. The graph takes ownership of filters and stages.
func New(b graphics.Backend, opts Options, filters map[string]*filter.Filter, stages []*stage.Stage, final *stage.Stage) (*Graph, error) {
	if opts.Resolution.X <= 0 || opts.Resolution.Y <= 0 {
		return nil, fmt.Errorf("invalid resolution %v", opts.Resolution)
	}
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = 60
	}
	if final == nil {
		return nil, errors.New("missing final stage")
	}
	if _, ok := filters[final.Filter()]; !ok {
		return nil, fmt.Errorf("final stage %q: %w %q", final.Name(), ErrUnknownFilter, final.Filter())
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if _, ok := filters[s.Filter()]; !ok {
			return nil, fmt.Errorf("stage %q: %w %q", s.Name(), ErrUnknownFilter, s.Filter())
		}
		if seen[s.Name()] || s.Name() == final.Name() {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
		}
		seen[s.Name()] = true
	}

	g := &Graph{
		backend:    b,
		opts:       opts,
		resolution: opts.Resolution,
		filters:    maps.Clone(filters),
		stages:     slices.Clone(stages),
		final:      final,
		env:        make(map[string]params.Value),
		cache:      make(map[string]uniform.Binding),
		bpm:        opts.BPM,
		now:        time.Now,
	}
	if g.filters == nil {
		g.filters = make(map[string]*filter.Filter)
	}
	buffers, err := g.allocate(g.stages, g.resolution)
	if err != nil {
		return nil, err
	}
	g.buffers = buffers
	for _, s := range g.stages {
		s.ClearDirty()
	}
	g.start = g.now()
	g.last = g.start

	logger.Logger().Info("render graph built",
		"stages", len(g.stages), "filters", len(g.filters), "resolution", g.resolution)
	return g, nil
}

// FromProject builds the filters and stages of a project. libs is the
// shared shader library root.
func FromProject(b graphics.Backend, p *config.Project, libs string) (*Graph, error) {
	filters := make(map[string]*filter.Filter, len(p.Filters))
	var stages []*stage.Stage
	var final *stage.Stage
	cleanup := func() {
		for _, f := range filters {
			f.Close()
		}
		for _, s := range stages {
			s.Close()
		}
		if final != nil {
			final.Close()
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Filters)) {
		cfg := p.Filters[name]
		r := shader.Resolver{Project: p.SourceRoots(cfg), Library: libs}
		f, err := filter.FromConfig(b, r, name, cfg)
		if err != nil {
			cleanup()
			return nil, err
		}
		filters[name] = f
	}
	for _, cfg := range p.RenderChain {
		s, err := stage.FromConfig(b, cfg)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to build render stage: %w", err)
		}
		stages = append(stages, s)
	}
	final, err := stage.FromConfig(b, p.FinalStage)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to build final render stage: %w", err)
	}

	g, err := New(b, OptionsFromView(p.View), filters, stages, final)
	if err != nil {
		cleanup()
		return nil, err
	}
	return g, nil
}

func (g *Graph) allocate(stages []*stage.Stage, size image.Point) ([]*RenderBuffer, error) {
	out := make([]*RenderBuffer, 0, len(stages))
	for _, s := range stages {
		rb, err := NewRenderBuffer(g.backend, size, s.Precision())
		if err != nil {
			for _, done := range out {
				done.Release()
			}
			return nil, fmt.Errorf("stage %q: %w", s.Name(), err)
		}
		out = append(out, rb)
	}
	return out, nil
}

// Update runs the ingest and update phases of a frame. Provider values
// that cannot be converted and stage variables that cannot be bound are
// reported in the returned error after the rest of the frame state has
// been updated. Shader compile failures are logged and never returned.
func (g *Graph) Update(providers map[string]inputs.Provider) error {
	g.advanceClock()

	var errs []error
	if err := g.ingest(providers); err != nil {
		errs = append(errs, err)
	}

	state := filter.FrameState{
		Resolution: g.resolution,
		Time:       g.time,
		Beat:       g.beat,
		Frame:      g.frame,
		Mouse:      g.mouse,
	}
	for _, name := range slices.Sorted(maps.Keys(g.filters)) {
		if err := g.filters[name].Update(state); err != nil {
			logger.Logger().Warn("shader compilation failed", "filter", name, "error", err)
		}
	}

	for i, s := range g.stages {
		if s.Dirty() {
			rb, err := NewRenderBuffer(g.backend, g.resolution, s.Precision())
			if err != nil {
				return errors.Join(append(errs, fmt.Errorf("stage %q: %w", s.Name(), err))...)
			}
			g.buffers[i].Release()
			g.buffers[i] = rb
			s.ClearDirty()
			logger.Logger().Debug("stage buffers reallocated", "stage", s.Name(), "precision", s.Precision())
		}
		if err := s.Update(g.backend, g.env, g.beat); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.final.Update(g.backend, g.env, g.beat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (g *Graph) advanceClock() {
	now := g.now()
	if g.opts.LockedSpeed {
		g.beat += g.bpm / (60 * g.opts.TargetFPS)
		g.time = float64(g.frame) / g.opts.TargetFPS
	} else {
		g.beat += now.Sub(g.last).Seconds() * g.bpm / 60
		g.time = now.Sub(g.start).Seconds()
	}
	g.last = now
}

func (g *Graph) ingest(providers map[string]inputs.Provider) error {
	mipmapped := g.mipmappedNames()
	var errs []error
	for _, pname := range slices.Sorted(maps.Keys(providers)) {
		p := providers[pname]
		p.SetBeat(g.beat, g.opts.LockedSpeed)
		p.SetTime(g.time, g.opts.LockedSpeed)

		for _, name := range p.Provides() {
			v, ok := p.Get(name, true)
			if !ok {
				continue
			}
			mip := mipmapped[name] && v.Kind() == params.KindTexture
			if cur, ok := g.cache[name]; ok && cur.Source.Equal(v) && cur.Mipmapped == mip {
				g.env[name] = v
				continue
			}
			bind, err := uniform.FromValue(g.backend, v, mip)
			if err != nil {
				// env and cache keep the last value that converted
				errs = append(errs, fmt.Errorf("input %q from %q: %w", name, pname, err))
				continue
			}
			g.env[name] = v
			if old, ok := g.cache[name]; ok {
				old.Release()
			}
			g.cache[name] = bind
		}
	}
	return errors.Join(errs...)
}

// mipmappedNames returns the names sampled with mipmaps by any stage,
// including the final one.
func (g *Graph) mipmappedNames() map[string]bool {
	out := make(map[string]bool)
	for _, s := range append(slices.Clone(g.stages), g.final) {
		for _, in := range s.Inputs() {
			if in.Sampler.NeedsMipmaps() {
				out[in.Name] = true
			}
		}
	}
	return out
}

// Render draws every stage into its back buffer in order, rotating each
// pair right after its draw, then draws the final stage to the display.
func (g *Graph) Render() error {
	mipmapped := g.mipmappedNames()
	for i, s := range g.stages {
		rb := g.buffers[i]
		if err := g.draw(s, rb.Back()); err != nil {
			return err
		}
		rb.rotate()
		if mipmapped[s.Name()] {
			if err := g.backend.GenerateMipmaps(rb.Front()); err != nil {
				return fmt.Errorf("stage %q: failed to generate mipmaps: %w", s.Name(), err)
			}
		}
	}
	if err := g.draw(g.final, nil); err != nil {
		return err
	}
	g.frame++
	return nil
}

func (g *Graph) draw(s *stage.Stage, target graphics.Texture) error {
	f, ok := g.filters[s.Filter()]
	if !ok {
		return fmt.Errorf("stage %q: %w %q", s.Name(), ErrUnknownFilter, s.Filter())
	}

	targets := make(map[string]filter.Target)
	ins := make(map[string]filter.Input)
	for uname, src := range s.Inputs() {
		if j := g.index(src.Name); j >= 0 {
			targets[uname] = filter.Target{Texture: g.buffers[j].Front(), Sampler: src.Sampler}
		} else if b, ok := g.cache[src.Name]; ok {
			ins[uname] = filter.Input{Uniform: b.Uniform, Sampler: src.Sampler}
		}
	}
	for name, b := range s.Uniforms() {
		if _, taken := ins[name]; !taken {
			ins[name] = filter.Input{Uniform: b.Uniform}
		}
	}

	if err := f.Render(ins, targets, target, s.FilterMode()); err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	return nil
}

func (g *Graph) index(name string) int {
	return slices.IndexFunc(g.stages, func(s *stage.Stage) bool { return s.Name() == name })
}

// SetResolution reallocates every buffer pair at size. It does nothing
// unless the graph is dynamic and size differs from the current
// resolution. All new pairs are allocated before any old one is released,
// so a failure leaves the graph unchanged.
func (g *Graph) SetResolution(size image.Point) error {
	if !g.opts.Dynamic || size == g.resolution {
		return nil
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("invalid resolution %v", size)
	}
	fresh, err := g.allocate(g.stages, size)
	if err != nil {
		return err
	}
	for _, rb := range g.buffers {
		rb.Release()
	}
	g.buffers = fresh
	g.resolution = size
	for _, s := range g.stages {
		s.ClearDirty()
	}
	logger.Logger().Info("resolution changed", "resolution", size)
	return nil
}

// Screenshot reads back the front texture of the named stage, or the
// display for the final stage. Unknown names return nil and no error.
func (g *Graph) Screenshot(name string) (*image.RGBA, error) {
	if name == g.final.Name() {
		return g.backend.ReadPixels(nil)
	}
	i := g.index(name)
	if i < 0 {
		return nil, nil
	}
	return g.backend.ReadPixels(g.buffers[i].Front())
}

// StageIndex pairs a stage name with its position in the render chain.
type StageIndex struct {
	Index int
	Name  string
}

func (g *Graph) StageIndexList() []StageIndex {
	out := make([]StageIndex, len(g.stages))
	for i, s := range g.stages {
		out[i] = StageIndex{Index: i, Name: s.Name()}
	}
	return out
}

// InsertStage adds s at index i, allocating its buffer pair first.
func (g *Graph) InsertStage(i int, s *stage.Stage) error {
	if i < 0 || i > len(g.stages) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if _, ok := g.filters[s.Filter()]; !ok {
		return fmt.Errorf("stage %q: %w %q", s.Name(), ErrUnknownFilter, s.Filter())
	}
	if g.index(s.Name()) >= 0 || s.Name() == g.final.Name() {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
	}
	rb, err := NewRenderBuffer(g.backend, g.resolution, s.Precision())
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.ClearDirty()
	g.stages = slices.Insert(g.stages, i, s)
	g.buffers = slices.Insert(g.buffers, i, rb)
	logger.Logger().Info("stage inserted", "stage", s.Name(), "index", i)
	return nil
}

// RemoveStage drops the stage at index i together with its buffers and
// bindings.
func (g *Graph) RemoveStage(i int) error {
	if i < 0 || i >= len(g.stages) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	s := g.stages[i]
	g.buffers[i].Release()
	s.Close()
	g.stages = slices.Delete(g.stages, i, i+1)
	g.buffers = slices.Delete(g.buffers, i, i+1)
	logger.Logger().Info("stage removed", "stage", s.Name(), "index", i)
	return nil
}

// MoveStage moves the stage at index from to index to, shifting the
// stages in between.
func (g *Graph) MoveStage(from, to int) error {
	n := len(g.stages)
	if from < 0 || from >= n {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, from)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, to)
	}
	s, rb := g.stages[from], g.buffers[from]
	g.stages = slices.Insert(slices.Delete(g.stages, from, from+1), to, s)
	g.buffers = slices.Insert(slices.Delete(g.buffers, from, from+1), to, rb)
	return nil
}

// Stage returns the named render chain stage or the final stage.
func (g *Graph) Stage(name string) *stage.Stage {
	if i := g.index(name); i >= 0 {
		return g.stages[i]
	}
	if g.final.Name() == name {
		return g.final
	}
	return nil
}

// Stages returns the render chain in order. The slice must not be
// modified.
func (g *Graph) Stages() []*stage.Stage { return g.stages }

// Buffer returns the buffer pair of the stage at index i.
func (g *Graph) Buffer(i int) (*RenderBuffer, error) {
	if i < 0 || i >= len(g.buffers) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return g.buffers[i], nil
}

func (g *Graph) FinalStage() *stage.Stage { return g.final }

// SetFinalStage replaces and closes the final stage.
func (g *Graph) SetFinalStage(s *stage.Stage) error {
	if _, ok := g.filters[s.Filter()]; !ok {
		return fmt.Errorf("final stage %q: %w %q", s.Name(), ErrUnknownFilter, s.Filter())
	}
	if g.index(s.Name()) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name())
	}
	g.final.Close()
	g.final = s
	return nil
}

func (g *Graph) Filter(name string) *filter.Filter { return g.filters[name] }

// AddFilter registers f under name, closing any filter it replaces.
func (g *Graph) AddFilter(name string, f *filter.Filter) {
	if old, ok := g.filters[name]; ok && old != f {
		old.Close()
	}
	g.filters[name] = f
}

// Value returns the last value ingested under name.
func (g *Graph) Value(name string) (params.Value, bool) {
	v, ok := g.env[name]
	return v, ok
}

func (g *Graph) SetBPM(bpm float64) { g.bpm = bpm }

func (g *Graph) BPM() float64 { return g.bpm }

// SetMouse sets the pointer position reported through iMouse.
func (g *Graph) SetMouse(x, y float32) {
	g.mouse[0], g.mouse[1] = x, y
}

// SetMouseState sets all four iMouse lanes: x, y, clickX, clickY.
func (g *Graph) SetMouseState(m [4]float32) { g.mouse = m }

func (g *Graph) FrameCount() int { return g.frame }

func (g *Graph) Beat() float64 { return g.beat }

func (g *Graph) Time() float64 { return g.time }

func (g *Graph) Resolution() image.Point { return g.resolution }

// Close releases every GPU resource owned by the graph.
func (g *Graph) Close() error {
	var errs []error
	for _, rb := range g.buffers {
		rb.Release()
	}
	for _, s := range g.stages {
		s.Close()
	}
	g.final.Close()
	for _, b := range g.cache {
		b.Release()
	}
	clear(g.cache)
	for _, f := range g.filters {
		errs = append(errs, f.Close())
	}
	g.buffers, g.stages = nil, nil
	return errors.Join(errs...)
}
