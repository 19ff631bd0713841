package glbackend

import (
	"image/color"
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

func TestClearColor(t *testing.T) {
	r, g, b, a := clearColor(color.NRGBA64{R: 0xffff, B: 0x7fff, A: 0xffff})
	assert.Equal(t, float32(1), r)
	assert.Zero(t, g)
	assert.InDelta(t, 0.5, b, 0.001)
	assert.Equal(t, float32(1), a)
}

func TestFlipRows(t *testing.T) {
	pix := []byte{1, 1, 2, 2, 3, 3}
	flipRows(pix, 2)
	assert.Equal(t, []byte{3, 3, 2, 2, 1, 1}, pix)

	single := []byte{9, 8}
	flipRows(single, 2)
	assert.Equal(t, []byte{9, 8}, single)
}

func TestSamplerModes(t *testing.T) {
	minF, magF := graphics.SamplerFilters(params.SamplerMipmaps)
	assert.Equal(t, int32(gl.LINEAR_MIPMAP_LINEAR), filterMode(minF))
	assert.Equal(t, int32(gl.LINEAR), filterMode(magF))
	assert.Equal(t, int32(gl.NEAREST), filterMode(graphics.FilterNearest))

	assert.Equal(t, int32(gl.REPEAT), wrapMode(graphics.WrapRepeat))
	assert.Equal(t, int32(gl.CLAMP_TO_EDGE), wrapMode(graphics.WrapClamp))
	assert.Equal(t, int32(gl.CLAMP_TO_BORDER), wrapMode(graphics.WrapBorderClamp))
}

func TestTextureFormat(t *testing.T) {
	internal, _, typ := textureFormat(params.PrecisionU8)
	assert.Equal(t, int32(gl.RGBA8), internal)
	assert.Equal(t, uint32(gl.UNSIGNED_BYTE), typ)

	internal, _, _ = textureFormat(params.PrecisionF16)
	assert.Equal(t, int32(gl.RGBA16F), internal)
	internal, _, _ = textureFormat(params.PrecisionF32)
	assert.Equal(t, int32(gl.RGBA32F), internal)

	assert.Equal(t, uint32(gl.TRIANGLES), topology(graphics.Triangles))
	assert.Equal(t, uint32(gl.TRIANGLE_STRIP), topology(graphics.TriangleStrip))
}
