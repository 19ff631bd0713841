package config

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/richinsley/goshadergraph/params"
)

// LoadTexture decodes an image file into a texture value. png, jpeg, gif,
// bmp, tiff and webp are supported.
func LoadTexture(path string) (params.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return params.Value{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return DecodeTexture(f)
}

// DecodeTexture decodes an image into a texture value with packed RGB
// pixels, bottom row first as GL expects.
func DecodeTexture(r io.Reader) (params.Value, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return params.Value{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return TextureFromImage(img)
}

// TextureFromImage converts img into a texture value.
func TextureFromImage(img image.Image) (params.Value, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 0, w*h*3)
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pix = append(pix, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return params.Texture(w, h, pix)
}
