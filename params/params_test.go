package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	assert.True(t, Float(1).Equal(Float(1)))
	assert.False(t, Float(1).Equal(Float(2)))
	assert.False(t, Float(1).Equal(Integer(1)))
	assert.True(t, Float3(1, 2, 3).Equal(Float3(1, 2, 3)))
	assert.True(t, FloatArray([]float32{1, 2}).Equal(FloatArray([]float32{1, 2})))
	assert.False(t, BoolArray([]bool{true}).Equal(BoolArray([]bool{false})))
	assert.True(t, Value{}.Equal(Value{}))
	assert.False(t, Value{}.IsValid())

	a, err := Texture(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	b, err := Texture(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestConstructorsCopy(t *testing.T) {
	src := []float32{1, 2, 3}
	v := FloatArray(src)
	src[0] = 42
	assert.Equal(t, float32(1), v.FloatArray()[0])
}

func TestTextureSizeMismatch(t *testing.T) {
	_, err := Texture(2, 2, []byte{0, 0, 0})
	assert.Error(t, err)
	_, err = Texture(0, 2, nil)
	assert.Error(t, err)
}

func TestValueArithmetic(t *testing.T) {
	sum, ok := Float2(1, 2).Add(Float2(3, 4))
	require.True(t, ok)
	assert.Equal(t, [4]float32{4, 6, 0, 0}, sum.Floats())

	sum, ok = Float3(1, 1, 1).Add(Float(1))
	require.True(t, ok)
	assert.True(t, sum.Equal(Float3(2, 2, 2)))

	_, ok = Float2(1, 2).Add(Float3(1, 2, 3))
	assert.False(t, ok)
	_, ok = Bool(true).Add(Bool(true))
	assert.False(t, ok)

	scaled, ok := Integer(3).Scale(0.5)
	require.True(t, ok)
	assert.Equal(t, int32(2), scaled.Int())

	_, ok = ByteArray([]byte{1}).Scale(2)
	assert.False(t, ok)
}

func TestVariableResolveWithOffset(t *testing.T) {
	v := Variable{
		Base:   Float(2),
		Offset: &Offset{Reference: "volume", Weight: 0.5},
	}

	got, changed := v.Resolve(map[string]Value{"volume": Float(4)}, 0)
	assert.True(t, changed)
	assert.True(t, got.Equal(Float(4)), "got %v", got)

	got, changed = v.Resolve(map[string]Value{}, 0)
	assert.False(t, changed)
	assert.True(t, got.Equal(Float(2)))

	got, changed = v.Resolve(map[string]Value{"volume": Bool(true)}, 0)
	assert.False(t, changed)
	assert.True(t, got.Equal(Float(2)))
}

func TestAutomationInactive(t *testing.T) {
	_, ok := Automation{}.Apply(Float(1), 0.3)
	assert.False(t, ok)
}

func TestAutomationReportsOnlyChanges(t *testing.T) {
	flat := Automation{Curve: CurveSine, Amplitude: 0, Frequency: 1}
	_, ok := flat.Apply(Float(1), 0.25)
	assert.False(t, ok, "a zero amplitude curve never replaces the base")

	sine := Automation{Curve: CurveSine, Amplitude: 1, Frequency: 1}
	got, ok := sine.Apply(Float(1), 0.25)
	require.True(t, ok)
	assert.InDelta(t, 2.0, got.Floats()[0], 1e-5)

	// sin(0) == 0 so the value is unchanged at beat 0
	_, ok = sine.Apply(Float(1), 0)
	assert.False(t, ok)

	_, ok = sine.Apply(Bool(true), 0.25)
	assert.False(t, ok)
}

func TestAutomationWaves(t *testing.T) {
	tests := []struct {
		curve Curve
		t     float32
		want  float32
	}{
		{CurveSaw, 0, -1},
		{CurveSaw, 0.5, 0},
		{CurveSquare, 0.25, 1},
		{CurveSquare, 0.75, -1},
		{CurveTriangle, 0, 0},
		{CurveTriangle, 0.25, 1},
		{CurveTriangle, 0.75, -1},
		{CurveTriangle, 1.25, 1},
		{CurveSine, 0.25, 1},
	}
	for _, tt := range tests {
		t.Run(tt.curve.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, Automation{Curve: tt.curve}.Wave(tt.t), 1e-5)
		})
	}
}

func TestAutomationAppliesToVectors(t *testing.T) {
	a := Automation{Curve: CurveSquare, Amplitude: 1, Frequency: 1, Shift: 0.5}
	got, ok := a.Apply(Float2(0, 1), 0.1)
	require.True(t, ok)
	assert.True(t, got.Equal(Float2(1.5, 2.5)), "got %v", got)
}

func TestVariableAutomationAfterOffset(t *testing.T) {
	v := Variable{
		Base:       Float(1),
		Offset:     &Offset{Reference: "x", Weight: 1},
		Automation: Automation{Curve: CurveSquare, Amplitude: 1, Frequency: 1},
	}
	got, changed := v.Resolve(map[string]Value{"x": Float(1)}, 0.1)
	assert.True(t, changed)
	assert.True(t, got.Equal(Float(3)), "got %v", got)
}

func TestParsers(t *testing.T) {
	s, err := ParseSampler("mipmap")
	require.NoError(t, err)
	assert.Equal(t, SamplerMipmaps, s)
	assert.True(t, s.NeedsMipmaps())

	_, err = ParseSampler("cubic")
	assert.Error(t, err)

	p, err := ParsePrecision("F16")
	require.NoError(t, err)
	assert.Equal(t, PrecisionF16, p)

	c, err := ParseCurve("Triangle")
	require.NoError(t, err)
	assert.Equal(t, CurveTriangle, c)
	_, err = ParseCurve("wobble")
	assert.Error(t, err)
}
