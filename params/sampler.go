package params

import (
	"fmt"
	"strings"
)

// Sampler selects how a named input is filtered when a shader samples it.
type Sampler uint8

const (
	SamplerLinear Sampler = iota
	SamplerNearest
	SamplerMipmaps
)

func (s Sampler) String() string {
	switch s {
	case SamplerNearest:
		return "nearest"
	case SamplerLinear:
		return "linear"
	case SamplerMipmaps:
		return "mipmaps"
	}
	return fmt.Sprintf("Sampler(%d)", s)
}

// ParseSampler accepts the names used in project files. The empty string is
// SamplerLinear; "mipmap" and "mipmaps" are synonyms.
func ParseSampler(s string) (Sampler, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return SamplerLinear, nil
	case "nearest":
		return SamplerNearest, nil
	case "mipmap", "mipmaps":
		return SamplerMipmaps, nil
	}
	return SamplerLinear, fmt.Errorf("unknown sampler %q", s)
}

// NeedsMipmaps reports whether the source must carry mipmap levels.
func (s Sampler) NeedsMipmaps() bool { return s == SamplerMipmaps }

// SampledInput names an input source together with its sampler.
type SampledInput struct {
	Name    string
	Sampler Sampler
}

// Precision is the per-channel format of a stage's render buffers.
type Precision uint8

const (
	PrecisionF32 Precision = iota
	PrecisionF16
	PrecisionU8
)

func (p Precision) String() string {
	switch p {
	case PrecisionU8:
		return "u8"
	case PrecisionF16:
		return "f16"
	case PrecisionF32:
		return "f32"
	}
	return fmt.Sprintf("Precision(%d)", p)
}

// ParsePrecision accepts "u8", "f16" and "f32". The empty string is F32.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f32":
		return PrecisionF32, nil
	case "f16":
		return PrecisionF16, nil
	case "u8":
		return PrecisionU8, nil
	}
	return PrecisionF32, fmt.Errorf("unknown buffer precision %q", s)
}
