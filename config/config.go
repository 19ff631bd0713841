// Package config loads YAML project files.
//
// A project names its filters (shader programs), the ordered render chain
// of stages that run them, the final stage drawn to the display and the
// input providers that feed named values into the graph.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/params"
)

// View holds the output surface settings.
type View struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Dynamic     bool    `yaml:"dynamic"`
	VSync       bool    `yaml:"vsync"`
	Fullscreen  bool    `yaml:"fullscreen"`
	TargetFPS   float64 `yaml:"target_fps"`
	LockedSpeed bool    `yaml:"locked_speed"`
	BPM         float64 `yaml:"bpm"`
}

// Filter describes one shader program. Vertex and Fragment list fragment
// paths concatenated in order; Path is an extra source root, relative to
// the project directory, searched before the project directory itself.
type Filter struct {
	Path      string           `yaml:"path"`
	Vertex    []string         `yaml:"vertex"`
	Fragment  []string         `yaml:"fragment"`
	Inputs    []string         `yaml:"inputs"`
	Variables map[string]Value `yaml:"variables"`
}

// FilterMode holds per-stage draw settings.
type FilterMode struct {
	Blend Blend `yaml:"blend"`
}

// Stage is one entry of the render chain.
type Stage struct {
	Name       string                  `yaml:"name"`
	Filter     string                  `yaml:"filter"`
	Precision  Precision               `yaml:"precision"`
	Inputs     map[string]SampledInput `yaml:"inputs"`
	Variables  map[string]Variable     `yaml:"variables"`
	FilterMode FilterMode              `yaml:"filter_mode"`
}

// Input configures one input provider. Type is "audio", "image" or
// "values".
type Input struct {
	Type string `yaml:"type"`
	// Device selects the audio source: "microphone", "file" or "null".
	Device   string           `yaml:"device"`
	Path     string           `yaml:"path"`
	Realtime bool             `yaml:"realtime"`
	Values   map[string]Value `yaml:"values"`
}

// Project is a parsed project file.
type Project struct {
	// Dir is the directory of the project file.
	Dir         string            `yaml:"-"`
	View        View              `yaml:"view"`
	Inputs      map[string]Input  `yaml:"inputs"`
	Filters     map[string]Filter `yaml:"filters"`
	RenderChain []Stage           `yaml:"render_chain"`
	FinalStage  Stage             `yaml:"final_stage"`
}

// Default returns a project with the default view settings and nothing
// else.
func Default() Project {
	return Project{
		View: View{
			Width:     640,
			Height:    480,
			VSync:     true,
			TargetFPS: 60,
			BPM:       120,
		},
	}
}

// Load reads and validates the project file at path. Texture values are
// decoded relative to the project directory.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return Parse(data, dir)
}

// Parse decodes a project from YAML. dir is the base for relative paths.
func Parse(data []byte, dir string) (*Project, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	p.Dir = dir
	if p.FinalStage.Name == "" {
		p.FinalStage.Name = "final"
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.loadTextures(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the references between stages and filters.
func (p *Project) Validate() error {
	if p.View.Width <= 0 || p.View.Height <= 0 {
		return fmt.Errorf("invalid view size %dx%d", p.View.Width, p.View.Height)
	}
	if p.View.TargetFPS <= 0 {
		return fmt.Errorf("invalid target_fps %v", p.View.TargetFPS)
	}

	var errs []error
	seen := make(map[string]bool, len(p.RenderChain))
	for i, s := range p.RenderChain {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("render_chain[%d]: missing name", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("render_chain[%d]: duplicate stage %q", i, s.Name))
		}
		if s.Name != "" && s.Name == p.FinalStage.Name {
			errs = append(errs, fmt.Errorf("render_chain[%d]: stage %q has the final stage's name", i, s.Name))
		}
		seen[s.Name] = true
		if _, ok := p.Filters[s.Filter]; !ok {
			errs = append(errs, fmt.Errorf("stage %q: unknown filter %q", s.Name, s.Filter))
		}
	}
	if p.FinalStage.Filter == "" {
		errs = append(errs, errors.New("final_stage: missing filter"))
	} else if _, ok := p.Filters[p.FinalStage.Filter]; !ok {
		errs = append(errs, fmt.Errorf("final_stage: unknown filter %q", p.FinalStage.Filter))
	}
	return errors.Join(errs...)
}

// SourceRoots returns the directories searched for a filter's fragments.
func (p *Project) SourceRoots(f Filter) []string {
	if f.Path == "" {
		return []string{p.Dir}
	}
	root := f.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(p.Dir, root)
	}
	return []string{root, p.Dir}
}

func (p *Project) loadTextures() error {
	load := func(v *Value) error {
		if v.Path == "" {
			return nil
		}
		path := v.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Dir, path)
		}
		tex, err := LoadTexture(path)
		if err != nil {
			return err
		}
		v.Value = tex
		return nil
	}

	for name, f := range p.Filters {
		for k, v := range f.Variables {
			if err := load(&v); err != nil {
				return fmt.Errorf("filter %q variable %q: %w", name, k, err)
			}
			f.Variables[k] = v
		}
	}
	stages := []*Stage{&p.FinalStage}
	for i := range p.RenderChain {
		stages = append(stages, &p.RenderChain[i])
	}
	for _, s := range stages {
		for k, v := range s.Variables {
			if err := load(&v.Value); err != nil {
				return fmt.Errorf("stage %q variable %q: %w", s.Name, k, err)
			}
			s.Variables[k] = v
		}
	}
	for name, in := range p.Inputs {
		for k, v := range in.Values {
			if err := load(&v); err != nil {
				return fmt.Errorf("input %q value %q: %w", name, k, err)
			}
			in.Values[k] = v
		}
	}
	return nil
}

// Precision decodes a buffer precision name.
type Precision params.Precision

func (p *Precision) UnmarshalYAML(n *yaml.Node) error {
	v, err := params.ParsePrecision(n.Value)
	if err != nil {
		return err
	}
	*p = Precision(v)
	return nil
}

// Blend decodes a blend mode name.
type Blend graphics.BlendMode

func (b *Blend) UnmarshalYAML(n *yaml.Node) error {
	v, err := graphics.ParseBlendMode(n.Value)
	if err != nil {
		return err
	}
	*b = Blend(v)
	return nil
}
