// Package uniform converts parameter values into GPU uniforms.
package uniform

import (
	"errors"
	"fmt"
	"math"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

// ErrUnsupported is returned for values that have no uniform representation.
var ErrUnsupported = errors.New("unsupported parameter conversion")

// Binding is the GPU counterpart of a parameter value. A binding that holds
// a texture owns it; Release frees it.
type Binding struct {
	Source  params.Value
	Uniform graphics.Uniform
	// Mipmapped is set when the texture was built with mipmaps.
	Mipmapped bool
}

// FromValue converts v. Texture and array values are uploaded as textures;
// mipmaps asks for mipmap storage and generation on image textures.
func FromValue(b graphics.Backend, v params.Value, mipmaps bool) (Binding, error) {
	u := graphics.Uniform{}
	f := v.Floats()

	switch v.Kind() {
	case params.KindFloat:
		u.Kind = graphics.UniformFloat
		u.Floats[0] = f[0]
	case params.KindFloat2:
		u.Kind = graphics.UniformVec2
		copy(u.Floats[:2], f[:2])
	case params.KindFloat3:
		u.Kind = graphics.UniformVec3
		copy(u.Floats[:3], f[:3])
	case params.KindFloat4:
		u.Kind = graphics.UniformVec4
		copy(u.Floats[:4], f[:4])
	case params.KindInteger:
		u.Kind = graphics.UniformInt
		u.Int = v.Int()
	case params.KindBool:
		u.Kind = graphics.UniformBool
		u.Bool = v.Bool()
	case params.KindTexture:
		img := v.Image()
		t, err := b.NewImageTexture(img.Width, img.Height, img.Pix, mipmaps)
		if err != nil {
			return Binding{}, fmt.Errorf("failed to build texture from texture data: %w", err)
		}
		if mipmaps {
			if err := b.GenerateMipmaps(t); err != nil {
				t.Release()
				return Binding{}, fmt.Errorf("failed to generate texture mipmaps: %w", err)
			}
		}
		u.Kind = graphics.UniformSampler2D
		u.Sampled = graphics.Sampled{Texture: t, Wrap: graphics.WrapRepeat}
	case params.KindFloatArray, params.KindBoolArray, params.KindIntArray, params.KindByteArray:
		data := arrayData(v)
		t, err := b.NewBufferTexture(data)
		if err != nil {
			return Binding{}, fmt.Errorf("failed to build buffer from %s: %w", v.Kind(), err)
		}
		u.Kind = graphics.UniformBufferSampler
		u.Sampled = graphics.Sampled{Texture: t, Wrap: graphics.WrapBorderClamp}
		u.Length = len(data)
	default:
		return Binding{}, fmt.Errorf("%w: %s", ErrUnsupported, v.Kind())
	}
	return Binding{Source: v, Uniform: u, Mipmapped: mipmaps && v.Kind() == params.KindTexture}, nil
}

// arrayData flattens an array value into normalised floats: booleans as
// 0 or 1, integers divided by 2^32, bytes divided by 255.
func arrayData(v params.Value) []float32 {
	switch v.Kind() {
	case params.KindFloatArray:
		return append([]float32(nil), v.FloatArray()...)
	case params.KindBoolArray:
		out := make([]float32, len(v.BoolArray()))
		for i, x := range v.BoolArray() {
			if x {
				out[i] = 1
			}
		}
		return out
	case params.KindIntArray:
		out := make([]float32, len(v.IntArray()))
		for i, x := range v.IntArray() {
			out[i] = float32(float64(x) / math.Exp2(32))
		}
		return out
	case params.KindByteArray:
		out := make([]float32, len(v.ByteArray()))
		for i, x := range v.ByteArray() {
			out[i] = float32(x) / 255
		}
		return out
	}
	return nil
}

// Release frees the texture owned by the binding, if any.
func (b Binding) Release() {
	if b.Uniform.IsSampler() && b.Uniform.Sampled.Texture != nil {
		b.Uniform.Sampled.Texture.Release()
	}
}

// Resample returns u bound with the filters for s. Non-sampler uniforms are
// returned unchanged. Buffer textures have no mipmap levels and fall back
// to linear filtering.
func Resample(u graphics.Uniform, s params.Sampler) graphics.Uniform {
	if !u.IsSampler() {
		return u
	}
	if u.Kind == graphics.UniformBufferSampler && s.NeedsMipmaps() {
		s = params.SamplerLinear
	}
	u.Sampled.Min, u.Sampled.Mag = graphics.SamplerFilters(s)
	return u
}

// Mat4 builds a column-major mat4 uniform.
func Mat4(m [16]float32) graphics.Uniform {
	return graphics.Uniform{Kind: graphics.UniformMat4, Floats: m}
}

// Identity is the identity mat4.
var Identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

func Float(x float32) graphics.Uniform {
	return graphics.Uniform{Kind: graphics.UniformFloat, Floats: [16]float32{x}}
}

func Vec3(x, y, z float32) graphics.Uniform {
	return graphics.Uniform{Kind: graphics.UniformVec3, Floats: [16]float32{x, y, z}}
}

func Vec4(x, y, z, w float32) graphics.Uniform {
	return graphics.Uniform{Kind: graphics.UniformVec4, Floats: [16]float32{x, y, z, w}}
}

func Int(i int32) graphics.Uniform {
	return graphics.Uniform{Kind: graphics.UniformInt, Int: i}
}
