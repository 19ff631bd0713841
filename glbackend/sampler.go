package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshadergraph/graphics"
)

type samplerKey struct {
	wrap     graphics.Wrap
	min, mag graphics.Filter
}

// sampler returns a cached GL sampler object for s.
func (b *Backend) sampler(s graphics.Sampled) uint32 {
	key := samplerKey{wrap: s.Wrap, min: s.Min, mag: s.Mag}
	if id, ok := b.samplers[key]; ok {
		return id
	}
	var id uint32
	gl.GenSamplers(1, &id)
	wrap := wrapMode(s.Wrap)
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_S, wrap)
	gl.SamplerParameteri(id, gl.TEXTURE_WRAP_T, wrap)
	gl.SamplerParameteri(id, gl.TEXTURE_MIN_FILTER, filterMode(s.Min))
	gl.SamplerParameteri(id, gl.TEXTURE_MAG_FILTER, filterMode(s.Mag))
	b.samplers[key] = id
	return id
}

func wrapMode(w graphics.Wrap) int32 {
	switch w {
	case graphics.WrapClamp:
		return gl.CLAMP_TO_EDGE
	case graphics.WrapBorderClamp:
		return gl.CLAMP_TO_BORDER
	default:
		return gl.REPEAT
	}
}

func filterMode(f graphics.Filter) int32 {
	switch f {
	case graphics.FilterNearest:
		return gl.NEAREST
	case graphics.FilterLinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}
