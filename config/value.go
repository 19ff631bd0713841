package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/richinsley/goshadergraph/params"
)

// Value is a parameter value as written in a project file.
//
// Scalars decode by their YAML type (bool, int, float). A sequence of one
// to four numbers is a float vector, a longer one a float array, and a
// sequence of booleans a bool array. Other kinds use a single-key mapping:
// float_array, bool_array, int_array, byte_array or texture (an image
// path).
type Value struct {
	params.Value
	// Path is the image file of a texture value, resolved by Load.
	Path string
}

func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return v.scalar(n)
	case yaml.SequenceNode:
		return v.sequence(n)
	case yaml.MappingNode:
		return v.mapping(n)
	}
	return fmt.Errorf("line %d: unsupported value", n.Line)
}

func (v *Value) scalar(n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		v.Value = params.Bool(b)
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 32)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		v.Value = params.Integer(int32(i))
	case "!!float":
		var f float32
		if err := n.Decode(&f); err != nil {
			return err
		}
		v.Value = params.Float(f)
	default:
		return fmt.Errorf("line %d: %q is not a parameter value", n.Line, n.Value)
	}
	return nil
}

func (v *Value) sequence(n *yaml.Node) error {
	if len(n.Content) == 0 {
		return fmt.Errorf("line %d: empty sequence", n.Line)
	}
	if n.Content[0].ShortTag() == "!!bool" {
		var a []bool
		if err := n.Decode(&a); err != nil {
			return err
		}
		v.Value = params.BoolArray(a)
		return nil
	}

	var f []float32
	if err := n.Decode(&f); err != nil {
		return err
	}
	switch len(f) {
	case 1:
		v.Value = params.Float(f[0])
	case 2:
		v.Value = params.Float2(f[0], f[1])
	case 3:
		v.Value = params.Float3(f[0], f[1], f[2])
	case 4:
		v.Value = params.Float4(f[0], f[1], f[2], f[3])
	default:
		v.Value = params.FloatArray(f)
	}
	return nil
}

func (v *Value) mapping(n *yaml.Node) error {
	var m struct {
		FloatArray []float32 `yaml:"float_array"`
		BoolArray  []bool    `yaml:"bool_array"`
		IntArray   []int32   `yaml:"int_array"`
		ByteArray  []int     `yaml:"byte_array"`
		Texture    string    `yaml:"texture"`
	}
	if err := n.Decode(&m); err != nil {
		return err
	}
	if len(n.Content) != 2 {
		return fmt.Errorf("line %d: typed value must have exactly one key", n.Line)
	}
	switch n.Content[0].Value {
	case "float_array":
		v.Value = params.FloatArray(m.FloatArray)
	case "bool_array":
		v.Value = params.BoolArray(m.BoolArray)
	case "int_array":
		v.Value = params.IntArray(m.IntArray)
	case "byte_array":
		b := make([]byte, len(m.ByteArray))
		for i, x := range m.ByteArray {
			if x < 0 || x > 255 {
				return fmt.Errorf("line %d: byte %d out of range", n.Line, x)
			}
			b[i] = byte(x)
		}
		v.Value = params.ByteArray(b)
	case "texture":
		if m.Texture == "" {
			return fmt.Errorf("line %d: empty texture path", n.Line)
		}
		v.Path = m.Texture
	default:
		return fmt.Errorf("line %d: unknown value type %q", n.Line, n.Content[0].Value)
	}
	return nil
}

// Variable is a stage variable: a base value with an optional automation
// and offset. A bare value is accepted as a variable without either.
type Variable struct {
	Value      Value
	Automation params.Automation
	Offset     *params.Offset
}

func (v *Variable) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode || !hasKey(n, "value") {
		return n.Decode(&v.Value)
	}
	var raw struct {
		Value      Value `yaml:"value"`
		Automation *struct {
			Curve     string  `yaml:"curve"`
			Amplitude float32 `yaml:"amplitude"`
			Frequency float32 `yaml:"frequency"`
			Phase     float32 `yaml:"phase"`
			Shift     float32 `yaml:"shift"`
		} `yaml:"automation"`
		Offset *struct {
			Reference string   `yaml:"reference"`
			Weight    *float32 `yaml:"weight"`
		} `yaml:"offset"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	v.Value = raw.Value
	if a := raw.Automation; a != nil {
		c, err := params.ParseCurve(a.Curve)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		v.Automation = params.Automation{
			Curve:     c,
			Amplitude: a.Amplitude,
			Frequency: a.Frequency,
			Phase:     a.Phase,
			Shift:     a.Shift,
		}
	}
	if o := raw.Offset; o != nil {
		if o.Reference == "" {
			return fmt.Errorf("line %d: offset without reference", n.Line)
		}
		w := float32(1)
		if o.Weight != nil {
			w = *o.Weight
		}
		v.Offset = &params.Offset{Reference: o.Reference, Weight: w}
	}
	return nil
}

// Params returns the variable as a params.Variable.
func (v Variable) Params() params.Variable {
	return params.Variable{Base: v.Value.Value, Automation: v.Automation, Offset: v.Offset}
}

// SampledInput is a stage input. A bare name samples linearly; the mapping
// form {name, sampler} selects the sampler.
type SampledInput struct {
	params.SampledInput
}

func (s *SampledInput) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		s.Name = n.Value
		s.Sampler = params.SamplerLinear
		return nil
	}
	var raw struct {
		Name    string `yaml:"name"`
		Sampler string `yaml:"sampler"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("line %d: input without name", n.Line)
	}
	sm, err := params.ParseSampler(raw.Sampler)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	s.Name, s.Sampler = raw.Name, sm
	return nil
}

func hasKey(n *yaml.Node, key string) bool {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
