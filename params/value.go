// Package params holds the values that flow from configuration and input
// providers into shader uniforms, together with the rules that animate them.
package params

import (
	"bytes"
	"fmt"
	"slices"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFloat
	KindFloat2
	KindFloat3
	KindFloat4
	KindInteger
	KindBool
	KindFloatArray
	KindBoolArray
	KindIntArray
	KindByteArray
	KindTexture
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindFloat:      "float",
	KindFloat2:     "float2",
	KindFloat3:     "float3",
	KindFloat4:     "float4",
	KindInteger:    "int",
	KindBool:       "bool",
	KindFloatArray: "float_array",
	KindBoolArray:  "bool_array",
	KindIntArray:   "int_array",
	KindByteArray:  "byte_array",
	KindTexture:    "texture",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// components is the number of float lanes used by the vector kinds.
func (k Kind) components() int {
	switch k {
	case KindFloat:
		return 1
	case KindFloat2:
		return 2
	case KindFloat3:
		return 3
	case KindFloat4:
		return 4
	}
	return 0
}

// Image is the pixel payload of a texture value: tightly packed 8-bit RGB rows.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// Value is a tagged parameter value. Values are built by the constructors in
// this file and never modified afterwards; updating a parameter means
// replacing its Value.
type Value struct {
	kind   Kind
	floats [4]float32
	i      int32
	b      bool

	floatArray []float32
	boolArray  []bool
	intArray   []int32
	byteArray  []byte
	image      *Image
}

func Float(x float32) Value { return Value{kind: KindFloat, floats: [4]float32{x}} }

func Float2(x, y float32) Value { return Value{kind: KindFloat2, floats: [4]float32{x, y}} }

func Float3(x, y, z float32) Value { return Value{kind: KindFloat3, floats: [4]float32{x, y, z}} }

func Float4(x, y, z, w float32) Value {
	return Value{kind: KindFloat4, floats: [4]float32{x, y, z, w}}
}

func Integer(i int32) Value { return Value{kind: KindInteger, i: i} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func FloatArray(a []float32) Value { return Value{kind: KindFloatArray, floatArray: slices.Clone(a)} }

func BoolArray(a []bool) Value { return Value{kind: KindBoolArray, boolArray: slices.Clone(a)} }

func IntArray(a []int32) Value { return Value{kind: KindIntArray, intArray: slices.Clone(a)} }

func ByteArray(a []byte) Value { return Value{kind: KindByteArray, byteArray: slices.Clone(a)} }

// Texture builds a texture value from packed RGB pixels. It fails when pix
// does not hold width*height*3 bytes.
func Texture(width, height int, pix []byte) (Value, error) {
	if width <= 0 || height <= 0 {
		return Value{}, fmt.Errorf("texture size %dx%d is empty", width, height)
	}
	if len(pix) != width*height*3 {
		return Value{}, fmt.Errorf("texture %dx%d needs %d bytes of RGB data, got %d", width, height, width*height*3, len(pix))
	}
	return Value{kind: KindTexture, image: &Image{Width: width, Height: height, Pix: slices.Clone(pix)}}, nil
}

// vector builds a value of kind k from the first lanes of f.
func vector(k Kind, f [4]float32) Value {
	v := Value{kind: k}
	copy(v.floats[:k.components()], f[:k.components()])
	return v
}

func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the known variants.
func (v Value) IsValid() bool { return v.kind != KindInvalid && int(v.kind) < len(kindNames) }

// Floats returns the vector lanes of a Float..Float4 value. Unused lanes are zero.
func (v Value) Floats() [4]float32 { return v.floats }

func (v Value) Int() int32 { return v.i }

func (v Value) Bool() bool { return v.b }

// The array accessors return the stored slice; callers must not modify it.

func (v Value) FloatArray() []float32 { return v.floatArray }

func (v Value) BoolArray() []bool { return v.boolArray }

func (v Value) IntArray() []int32 { return v.intArray }

func (v Value) ByteArray() []byte { return v.byteArray }

// Image returns the texture payload, or nil for other kinds.
func (v Value) Image() *Image { return v.image }

// Len returns the element count of array values and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindFloatArray:
		return len(v.floatArray)
	case KindBoolArray:
		return len(v.boolArray)
	case KindIntArray:
		return len(v.intArray)
	case KindByteArray:
		return len(v.byteArray)
	}
	return 0
}

// Equal reports whether v and o hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat, KindFloat2, KindFloat3, KindFloat4:
		return v.floats == o.floats
	case KindInteger:
		return v.i == o.i
	case KindBool:
		return v.b == o.b
	case KindFloatArray:
		return slices.Equal(v.floatArray, o.floatArray)
	case KindBoolArray:
		return slices.Equal(v.boolArray, o.boolArray)
	case KindIntArray:
		return slices.Equal(v.intArray, o.intArray)
	case KindByteArray:
		return bytes.Equal(v.byteArray, o.byteArray)
	case KindTexture:
		if v.image == o.image {
			return true
		}
		if v.image == nil || o.image == nil {
			return false
		}
		return v.image.Width == o.image.Width && v.image.Height == o.image.Height && bytes.Equal(v.image.Pix, o.image.Pix)
	}
	return true
}

// Scale multiplies every numeric lane of v by w. Integers are rounded toward
// the nearest value. The second result is false for non-numeric kinds.
func (v Value) Scale(w float32) (Value, bool) {
	switch v.kind {
	case KindFloat, KindFloat2, KindFloat3, KindFloat4:
		out := v
		for i := range v.kind.components() {
			out.floats[i] = v.floats[i] * w
		}
		return out, true
	case KindInteger:
		return Integer(roundInt(float32(v.i) * w)), true
	case KindFloatArray:
		out := make([]float32, len(v.floatArray))
		for i, x := range v.floatArray {
			out[i] = x * w
		}
		return Value{kind: KindFloatArray, floatArray: out}, true
	}
	return Value{}, false
}

// Add returns v+o. Operands must share a numeric kind, except that a Float or
// Integer o is broadcast over every lane of a vector v. The second result is
// false when the shapes do not combine.
func (v Value) Add(o Value) (Value, bool) {
	switch {
	case v.kind.components() > 0 && o.kind == v.kind:
		out := v
		for i := range v.kind.components() {
			out.floats[i] += o.floats[i]
		}
		return out, true
	case v.kind.components() > 0 && (o.kind == KindFloat || o.kind == KindInteger):
		s := o.floats[0]
		if o.kind == KindInteger {
			s = float32(o.i)
		}
		out := v
		for i := range v.kind.components() {
			out.floats[i] += s
		}
		return out, true
	case v.kind == KindInteger && o.kind == KindInteger:
		return Integer(v.i + o.i), true
	case v.kind == KindInteger && o.kind == KindFloat:
		return Integer(v.i + roundInt(o.floats[0])), true
	case v.kind == KindFloatArray && o.kind == KindFloatArray && len(v.floatArray) == len(o.floatArray):
		out := make([]float32, len(v.floatArray))
		for i := range out {
			out[i] = v.floatArray[i] + o.floatArray[i]
		}
		return Value{kind: KindFloatArray, floatArray: out}, true
	}
	return Value{}, false
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat, KindFloat2, KindFloat3, KindFloat4:
		return fmt.Sprintf("%s%v", v.kind, v.floats[:v.kind.components()])
	case KindInteger:
		return fmt.Sprintf("int(%d)", v.i)
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindTexture:
		return fmt.Sprintf("texture(%dx%d)", v.image.Width, v.image.Height)
	case KindInvalid:
		return "invalid"
	}
	return fmt.Sprintf("%s[%d]", v.kind, v.Len())
}

func roundInt(x float32) int32 {
	if x < 0 {
		return int32(x - 0.5)
	}
	return int32(x + 0.5)
}
