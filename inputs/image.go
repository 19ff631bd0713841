package inputs

import (
	"fmt"

	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/params"
)

// Image publishes one decoded image under its name.
type Image struct {
	name  string
	value params.Value
}

// NewImage decodes the image file at path.
func NewImage(name, path string) (*Image, error) {
	v, err := config.LoadTexture(path)
	if err != nil {
		return nil, fmt.Errorf("image input %q: %w", name, err)
	}
	return NewImageValue(name, v)
}

// NewImageValue publishes an already decoded texture value.
func NewImageValue(name string, v params.Value) (*Image, error) {
	if v.Kind() != params.KindTexture {
		return nil, fmt.Errorf("image input %q: got %s value, want texture", name, v.Kind())
	}
	return &Image{name: name, value: v}, nil
}

func (i *Image) Provides() []string { return []string{i.name} }

func (i *Image) Get(name string, _ bool) (params.Value, bool) {
	if name != i.name {
		return params.Value{}, false
	}
	return i.value, true
}

func (i *Image) SetTime(float64, bool) {}

func (i *Image) SetBeat(float64, bool) {}

func (i *Image) Close() error { return nil }
