package renderer

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/filter"
	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/graphics/memgpu"
	"github.com/richinsley/goshadergraph/inputs"
	"github.com/richinsley/goshadergraph/params"
	"github.com/richinsley/goshadergraph/shader"
	"github.com/richinsley/goshadergraph/stage"
)

type editable struct {
	text    string
	pending bool
}

func (e *editable) Text() string { return e.text }

func (e *editable) CheckChanged() (bool, error) {
	changed := e.pending
	e.pending = false
	return changed, nil
}

func (e *editable) Close() error { return nil }

func newFilter(t *testing.T, b *memgpu.Backend, frag shader.Fragment) *filter.Filter {
	t.Helper()
	f, err := filter.New(b, "fx", shader.NewComposer(shader.Static(shader.DefaultVertex)), shader.NewComposer(frag), nil, nil)
	require.NoError(t, err)
	return f
}

func linear(name string) params.SampledInput { return params.SampledInput{Name: name} }

func plainStage(name string, ins map[string]params.SampledInput) *stage.Stage {
	return stage.New(name, "fx", params.PrecisionF32, filter.Mode{}, ins, nil)
}

var defaultOpts = Options{Resolution: image.Pt(64, 32), TargetFPS: 60, BPM: 120}

func newGraph(t *testing.T, b *memgpu.Backend, opts Options, final *stage.Stage, stages ...*stage.Stage) *Graph {
	t.Helper()
	if final == nil {
		final = plainStage("out", nil)
	}
	fx := newFilter(t, b, shader.Static("void main() {}"))
	g, err := New(b, opts, map[string]*filter.Filter{"fx": fx}, stages, final)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func frame(t *testing.T, g *Graph, providers map[string]inputs.Provider) {
	t.Helper()
	require.NoError(t, g.Update(providers))
	require.NoError(t, g.Render())
}

func drawsInto(b *memgpu.Backend, tex graphics.Texture) []memgpu.Draw {
	var out []memgpu.Draw
	for _, d := range b.Draws {
		if d.Target != nil && graphics.Texture(d.Target) == tex {
			out = append(out, d)
		}
	}
	return out
}

func TestBuffersFollowResolution(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil), plainStage("b", nil))

	for i := range g.Stages() {
		rb, err := g.Buffer(i)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(64, 32), rb.Size())
		assert.Equal(t, image.Pt(64, 32), rb.Front().Size())
		assert.Equal(t, image.Pt(64, 32), rb.Back().Size())
		assert.NotSame(t, rb.Front(), rb.Back())
		assert.True(t, rb.Front().(*memgpu.Texture).Mipmaps)
	}
	_, err := g.Buffer(2)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestFrontAlternates(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))
	rb, _ := g.Buffer(0)
	initial := [2]graphics.Texture{rb.Front(), rb.Back()}

	for n := 1; n <= 5; n++ {
		frame(t, g, nil)
		assert.Same(t, initial[n%2], rb.Front(), "after %d draws", n)
		assert.Same(t, initial[(n+1)%2], rb.Back())
	}
	assert.Equal(t, 5, g.FrameCount())
}

func TestOffsetFromProvider(t *testing.T) {
	b := memgpu.New(64, 32)
	s := stage.New("a", "fx", params.PrecisionF32, filter.Mode{}, nil, map[string]params.Variable{
		"gain": {Base: params.Float(2), Offset: &params.Offset{Reference: "volume", Weight: 0.5}},
	})
	g := newGraph(t, b, defaultOpts, nil, s)
	vals := inputs.NewValues(map[string]params.Value{"volume": params.Float(4)})

	frame(t, g, map[string]inputs.Provider{"vals": vals})
	rb, _ := g.Buffer(0)
	draws := drawsInto(b, rb.Front())
	require.Len(t, draws, 1)
	assert.Equal(t, float32(4), draws[0].Uniforms["gain"].Floats[0])
	assert.True(t, s.Uniforms()["gain"].Source.Equal(params.Float(4)))
}

func TestInputMapBeatsStageVariable(t *testing.T) {
	b := memgpu.New(64, 32)
	s := stage.New("a", "fx", params.PrecisionF32, filter.Mode{},
		map[string]params.SampledInput{"level": linear("volume")},
		map[string]params.Variable{"level": {Base: params.Float(1)}, "other": {Base: params.Float(3)}})
	g := newGraph(t, b, defaultOpts, nil, s)

	frame(t, g, map[string]inputs.Provider{"vals": inputs.NewValues(map[string]params.Value{"volume": params.Float(9)})})
	rb, _ := g.Buffer(0)
	d := drawsInto(b, rb.Front())[0]
	assert.Equal(t, float32(9), d.Uniforms["level"].Floats[0])
	assert.Equal(t, float32(3), d.Uniforms["other"].Floats[0])
}

func TestSetResolutionIgnoredWhenNotDynamic(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))
	before, _ := g.Buffer(0)

	require.NoError(t, g.SetResolution(image.Pt(128, 128)))
	after, _ := g.Buffer(0)
	assert.Same(t, before, after)
	assert.Equal(t, image.Pt(64, 32), after.Size())
	assert.Equal(t, image.Pt(64, 32), g.Resolution())
}

func TestSetResolutionReallocates(t *testing.T) {
	b := memgpu.New(64, 32)
	opts := defaultOpts
	opts.Dynamic = true
	g := newGraph(t, b, opts, nil, plainStage("a", nil), plainStage("b", nil))
	old, _ := g.Buffer(0)
	oldFront := old.Front().(*memgpu.Texture)

	require.NoError(t, g.SetResolution(image.Pt(128, 96)))
	assert.Equal(t, image.Pt(128, 96), g.Resolution())
	for i := range 2 {
		rb, _ := g.Buffer(i)
		assert.Equal(t, image.Pt(128, 96), rb.Front().Size())
	}
	assert.True(t, oldFront.Released)
	assert.Len(t, b.Live(), 4)

	require.NoError(t, g.SetResolution(image.Pt(128, 96)))
	assert.Len(t, b.Textures, 8, "same size allocates nothing")

	frame(t, g, nil)
	f := g.Filter("fx")
	assert.Equal(t, [16]float32{128, 96, 0}, f.Uniforms()["iResolution"].Floats)
}

func TestSetResolutionFailureLeavesGraphUnchanged(t *testing.T) {
	b := memgpu.New(64, 32)
	opts := defaultOpts
	opts.Dynamic = true
	g := newGraph(t, b, opts, nil, plainStage("a", nil), plainStage("b", nil))
	before := []*RenderBuffer{g.buffers[0], g.buffers[1]}

	n := 0
	b.AllocateHook = func(int, int) error {
		n++
		if n == 4 {
			return errors.New("out of video memory")
		}
		return nil
	}
	err := g.SetResolution(image.Pt(256, 256))
	require.ErrorContains(t, err, "out of video memory")

	assert.Equal(t, image.Pt(64, 32), g.Resolution())
	assert.Equal(t, before, g.buffers)
	assert.Len(t, b.Live(), 4, "partially allocated pairs are released")
	for _, rb := range before {
		assert.False(t, rb.Front().(*memgpu.Texture).Released)
	}
}

func TestCompileErrorKeepsOutput(t *testing.T) {
	b := memgpu.New(64, 32)
	frag := &editable{text: "void main() {}"}
	fx := newFilter(t, b, frag)
	g, err := New(b, defaultOpts, map[string]*filter.Filter{"fx": fx}, []*stage.Stage{plainStage("a", nil)}, plainStage("out", map[string]params.SampledInput{"iChannel0": linear("a")}))
	require.NoError(t, err)
	defer g.Close()

	frame(t, g, nil)
	good := b.LastDraw().Program

	frag.text, frag.pending = "#error broken", true
	frame(t, g, nil)
	assert.Same(t, good, b.LastDraw().Program)

	shot, err := g.Screenshot("a")
	require.NoError(t, err)
	assert.Equal(t, memgpu.ProgramColor(good.ID), shot.RGBAAt(0, 0))
}

func TestMutualFeedback(t *testing.T) {
	b := memgpu.New(64, 32)
	a := plainStage("a", map[string]params.SampledInput{"iChannel0": linear("b")})
	c := plainStage("b", map[string]params.SampledInput{"iChannel0": linear("a")})
	g := newGraph(t, b, defaultOpts, plainStage("out", map[string]params.SampledInput{"iChannel0": linear("b")}), a, c)

	rbA, _ := g.Buffer(0)
	rbB, _ := g.Buffer(1)
	frontB := rbB.Front()

	frame(t, g, nil)

	require.Len(t, b.Draws, 3)
	assert.Same(t, frontB, b.Draws[0].Uniforms["iChannel0"].Sampled.Texture, "a reads b's previous output")
	assert.Same(t, rbA.Front(), b.Draws[1].Uniforms["iChannel0"].Sampled.Texture)
	assert.Nil(t, b.Draws[2].Target)
	assert.Equal(t, 1, b.Presents)

	frame(t, g, nil)
	assert.Equal(t, 2, g.FrameCount())
}

func TestSelfFeedbackReadsPreviousFrame(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", map[string]params.SampledInput{"prev": linear("a")}))
	rb, _ := g.Buffer(0)

	for range 3 {
		front, back := rb.Front(), rb.Back()
		frame(t, g, nil)
		d := b.Draws[len(b.Draws)-2]
		assert.Same(t, back, graphics.Texture(d.Target))
		assert.Same(t, front, d.Uniforms["prev"].Sampled.Texture)
	}
}

func TestRemoveStage(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil), plainStage("b", nil), plainStage("c", nil))
	removed := g.buffers[1]

	require.NoError(t, g.RemoveStage(1))
	assert.Equal(t, []StageIndex{{0, "a"}, {1, "c"}}, g.StageIndexList())
	assert.Len(t, g.buffers, 2)
	assert.NotContains(t, g.buffers, removed)
	assert.Nil(t, removed.Front())
	assert.Len(t, b.Live(), 4)
	assert.Nil(t, g.Stage("b"))

	assert.True(t, errors.Is(g.RemoveStage(2), ErrIndexOutOfRange))
	frame(t, g, nil)
}

func TestInsertAndMoveStage(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))

	require.NoError(t, g.InsertStage(0, plainStage("z", nil)))
	require.NoError(t, g.InsertStage(2, plainStage("m", nil)))
	assert.Equal(t, []StageIndex{{0, "z"}, {1, "a"}, {2, "m"}}, g.StageIndexList())
	assert.Len(t, g.buffers, 3)
	assert.False(t, g.Stage("m").Dirty())

	bufZ := g.buffers[0]
	require.NoError(t, g.MoveStage(0, 2))
	assert.Equal(t, []StageIndex{{0, "a"}, {1, "m"}, {2, "z"}}, g.StageIndexList())
	assert.Same(t, bufZ, g.buffers[2], "buffers move with their stage")

	assert.True(t, errors.Is(g.InsertStage(5, plainStage("x", nil)), ErrIndexOutOfRange))
	assert.True(t, errors.Is(g.InsertStage(0, plainStage("a", nil)), ErrDuplicateStage))
	assert.True(t, errors.Is(g.InsertStage(0, stage.New("x", "nope", 0, filter.Mode{}, nil, nil)), ErrUnknownFilter))
	assert.True(t, errors.Is(g.MoveStage(0, 3), ErrIndexOutOfRange))

	b.AllocateHook = func(int, int) error { return errors.New("oom") }
	require.Error(t, g.InsertStage(0, plainStage("y", nil)))
	assert.Len(t, g.Stages(), 3)
	assert.Len(t, g.buffers, 3)
}

func TestScreenshot(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))
	frame(t, g, nil)

	img, err := g.Screenshot("missing")
	assert.NoError(t, err)
	assert.Nil(t, img)

	img, err = g.Screenshot("a")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())

	img, err = g.Screenshot("out")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
	assert.Equal(t, b.Display.Fill, img.RGBAAt(3, 3))
}

func TestMipmapsForConsumers(t *testing.T) {
	b := memgpu.New(64, 32)
	final := plainStage("out", map[string]params.SampledInput{
		"iChannel0": {Name: "a", Sampler: params.SamplerMipmaps},
		"logo":      {Name: "logo", Sampler: params.SamplerMipmaps},
	})
	g := newGraph(t, b, defaultOpts, final, plainStage("a", nil), plainStage("b", nil))

	tex, err := params.Texture(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	frame(t, g, map[string]inputs.Provider{"img": inputs.NewValues(map[string]params.Value{"logo": tex})})

	a, _ := g.Buffer(0)
	bb, _ := g.Buffer(1)
	assert.Equal(t, 1, a.Front().(*memgpu.Texture).MipmapGenerations)
	assert.Zero(t, bb.Front().(*memgpu.Texture).MipmapGenerations)

	logo := b.LastDraw().Uniforms["logo"]
	assert.Equal(t, graphics.FilterLinearMipmapLinear, logo.Sampled.Min)
	assert.Equal(t, graphics.WrapRepeat, logo.Sampled.Wrap)
	assert.Equal(t, 1, logo.Sampled.Texture.(*memgpu.Texture).MipmapGenerations)
	assert.True(t, g.cache["logo"].Mipmapped)
}

func TestIngestReusesUnchangedBindings(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil)
	vals := inputs.NewValues(map[string]params.Value{"spectrum": params.FloatArray([]float32{1, 2})})
	providers := map[string]inputs.Provider{"v": vals}

	frame(t, g, providers)
	first := g.cache["spectrum"].Uniform.Sampled.Texture
	frame(t, g, providers)
	assert.Same(t, first, g.cache["spectrum"].Uniform.Sampled.Texture)

	vals.Set("spectrum", params.FloatArray([]float32{3}))
	frame(t, g, providers)
	assert.NotSame(t, first, g.cache["spectrum"].Uniform.Sampled.Texture)
	assert.True(t, first.(*memgpu.Texture).Released)
	v, ok := g.Value("spectrum")
	require.True(t, ok)
	assert.True(t, v.Equal(params.FloatArray([]float32{3})))
}

func TestFailedConversionKeepsLastValue(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil)
	vals := inputs.NewValues(map[string]params.Value{"spectrum": params.FloatArray([]float32{1, 2})})
	providers := map[string]inputs.Provider{"v": vals}
	frame(t, g, providers)

	b.AllocateHook = func(int, int) error { return errors.New("oom") }
	vals.Set("spectrum", params.FloatArray([]float32{3}))
	assert.Error(t, g.Update(providers))

	v, ok := g.Value("spectrum")
	require.True(t, ok)
	assert.True(t, v.Equal(params.FloatArray([]float32{1, 2})))
	assert.True(t, g.cache["spectrum"].Source.Equal(v))
}

func TestStageNamedLikeFinalIsRejected(t *testing.T) {
	b := memgpu.New(64, 32)
	fx := newFilter(t, b, shader.Static("void main() {}"))
	defer fx.Close()
	_, err := New(b, defaultOpts, map[string]*filter.Filter{"fx": fx},
		[]*stage.Stage{plainStage("out", nil)}, plainStage("out", nil))
	assert.True(t, errors.Is(err, ErrDuplicateStage))
}

func TestDirtyStageGetsNewBuffers(t *testing.T) {
	b := memgpu.New(64, 32)
	s := plainStage("a", nil)
	g := newGraph(t, b, defaultOpts, nil, s)
	old, _ := g.Buffer(0)

	s.SetPrecision(params.PrecisionU8)
	require.True(t, s.Dirty())
	require.NoError(t, g.Update(nil))

	rb, _ := g.Buffer(0)
	assert.NotSame(t, old, rb)
	assert.Equal(t, params.PrecisionU8, rb.Precision())
	assert.Equal(t, params.PrecisionU8, rb.Front().(*memgpu.Texture).Precision)
	assert.False(t, s.Dirty())
	assert.Nil(t, old.Front())
}

func TestLockedClock(t *testing.T) {
	b := memgpu.New(64, 32)
	opts := defaultOpts
	opts.LockedSpeed = true
	g := newGraph(t, b, opts, nil)

	for range 30 {
		frame(t, g, nil)
	}
	assert.InDelta(t, 1.0, g.Beat(), 1e-9, "120 bpm at 60 fps is half a beat per second")
	assert.InDelta(t, 29.0/60, g.Time(), 1e-9)

	g.SetBPM(60)
	frame(t, g, nil)
	assert.InDelta(t, 1.0+1.0/60, g.Beat(), 1e-9)
}

func TestWallClock(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil)
	base := time.Unix(1000, 0)
	now := base
	g.now = func() time.Time { return now }
	g.start, g.last = base, base

	now = base.Add(2 * time.Second)
	require.NoError(t, g.Update(nil))
	assert.InDelta(t, 4.0, g.Beat(), 1e-9)
	assert.InDelta(t, 2.0, g.Time(), 1e-9)

	g.SetMouse(5, 6)
	require.NoError(t, g.Update(nil))
	assert.Equal(t, float32(6), g.Filter("fx").Uniforms()["iMouse"].Floats[1])
}

func TestUnknownFilter(t *testing.T) {
	b := memgpu.New(64, 32)
	fx := newFilter(t, b, shader.Static("void main() {}"))
	_, err := New(b, defaultOpts, map[string]*filter.Filter{"fx": fx}, []*stage.Stage{stage.New("a", "nope", 0, filter.Mode{}, nil, nil)}, plainStage("out", nil))
	assert.True(t, errors.Is(err, ErrUnknownFilter))

	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))
	g.Stage("a").SetFilter("nope")
	require.NoError(t, g.Update(nil))
	assert.True(t, errors.Is(g.Render(), ErrUnknownFilter))
}

func TestDrawFailurePropagates(t *testing.T) {
	b := memgpu.New(64, 32)
	g := newGraph(t, b, defaultOpts, nil, plainStage("a", nil))
	b.DrawHook = func(graphics.DrawCall) error { return errors.New("device lost") }
	require.NoError(t, g.Update(nil))
	assert.ErrorContains(t, g.Render(), "device lost")
	assert.Zero(t, g.FrameCount())
}

func TestFromProject(t *testing.T) {
	dir := t.TempDir()
	lib := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fb.glsl"), []byte("void main() {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "blit.glsl"), []byte("void main() {}"), 0o644))
	doc := `
view: {width: 32, height: 16, locked_speed: true}
filters:
  feedback: {fragment: [fb.glsl]}
  blit: {fragment: ["#blit.glsl"]}
render_chain:
  - name: fb
    filter: feedback
    precision: u8
    inputs: {prev: fb}
    variables: {gain: 0.5}
final_stage:
  name: screen
  filter: blit
  inputs: {iChannel0: {name: fb, sampler: mipmaps}}
`
	p, err := config.Parse([]byte(doc), dir)
	require.NoError(t, err)

	b := memgpu.New(32, 16)
	g, err := FromProject(b, p, lib)
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, image.Pt(32, 16), g.Resolution())
	assert.Equal(t, "screen", g.FinalStage().Name())
	assert.NotNil(t, g.Filter("blit"))
	frame(t, g, nil)
	rb, _ := g.Buffer(0)
	assert.Equal(t, params.PrecisionU8, rb.Precision())
	assert.Equal(t, 1, rb.Front().(*memgpu.Texture).MipmapGenerations)

	_, err = FromProject(b, &config.Project{Dir: dir, View: p.View, Filters: map[string]config.Filter{"x": {Fragment: []string{"missing.glsl"}}}}, lib)
	assert.True(t, errors.Is(err, shader.ErrNotFound))
}
