// Package stage holds one entry of the render chain: which filter it runs,
// where its inputs come from and the variables it passes to the filter.
package stage

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshadergraph/config"
	"github.com/richinsley/goshadergraph/filter"
	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/logger"
	"github.com/richinsley/goshadergraph/params"
	"github.com/richinsley/goshadergraph/uniform"
)

// Stage is a render chain entry. A new stage is dirty until its owner has
// allocated buffers for it.
type Stage struct {
	name      string
	filter    string
	inputs    map[string]params.SampledInput
	variables map[string]params.Variable
	uniforms  map[string]uniform.Binding
	precision params.Precision
	mode      filter.Mode
	dirty     bool
}

// New creates a stage. The maps are copied. Variable bindings are built by
// the first Update.
func New(name, filterName string, precision params.Precision, mode filter.Mode, inputs map[string]params.SampledInput, variables map[string]params.Variable) *Stage {
	s := &Stage{
		name:      name,
		filter:    filterName,
		inputs:    make(map[string]params.SampledInput, len(inputs)),
		variables: make(map[string]params.Variable, len(variables)),
		uniforms:  make(map[string]uniform.Binding, len(variables)),
		precision: precision,
		mode:      mode,
		dirty:     true,
	}
	for k, v := range inputs {
		s.inputs[k] = v
	}
	for k, v := range variables {
		s.variables[k] = v
	}
	return s
}

// FromConfig creates a stage and binds the base value of every variable.
func FromConfig(b graphics.Backend, cfg config.Stage) (*Stage, error) {
	inputs := make(map[string]params.SampledInput, len(cfg.Inputs))
	for k, in := range cfg.Inputs {
		inputs[k] = in.SampledInput
	}
	variables := make(map[string]params.Variable, len(cfg.Variables))
	for k, v := range cfg.Variables {
		variables[k] = v.Params()
	}
	mode := filter.Mode{Blend: graphics.BlendMode(cfg.FilterMode.Blend)}
	s := New(cfg.Name, cfg.Filter, params.Precision(cfg.Precision), mode, inputs, variables)

	for k, v := range s.variables {
		bind, err := uniform.FromValue(b, v.Base, false)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("stage %q variable %q: %w", cfg.Name, k, err)
		}
		s.uniforms[k] = bind
	}
	return s, nil
}

func (s *Stage) Name() string { return s.name }

func (s *Stage) Filter() string { return s.filter }

// Inputs maps uniform names to their sources. The map must not be
// modified.
func (s *Stage) Inputs() map[string]params.SampledInput { return s.inputs }

// Variables must not be modified; use the setters.
func (s *Stage) Variables() map[string]params.Variable { return s.variables }

// Uniforms returns the resolved variable bindings. The map must not be
// modified.
func (s *Stage) Uniforms() map[string]uniform.Binding { return s.uniforms }

func (s *Stage) Precision() params.Precision { return s.precision }

func (s *Stage) FilterMode() filter.Mode { return s.mode }

// Dirty reports whether the stage's buffers must be reallocated.
func (s *Stage) Dirty() bool { return s.dirty }

// ClearDirty is called by the buffer owner after reallocation.
func (s *Stage) ClearDirty() { s.dirty = false }

func (s *Stage) SetName(name string) { s.name = name }

func (s *Stage) SetInput(name string, in params.SampledInput) { s.inputs[name] = in }

func (s *Stage) RemoveInput(name string) { delete(s.inputs, name) }

func (s *Stage) SetFilter(name string) { s.filter = name }

func (s *Stage) SetFilterMode(m filter.Mode) { s.mode = m }

// SetPrecision marks the stage dirty when the format changes.
func (s *Stage) SetPrecision(p params.Precision) {
	if p == s.precision {
		return
	}
	s.precision = p
	s.dirty = true
}

// SetVariableValue sets the base value of a variable, creating it without
// automation or offset if needed, and rebinds it at once.
func (s *Stage) SetVariableValue(b graphics.Backend, name string, v params.Value) error {
	bind, err := uniform.FromValue(b, v, false)
	if err != nil {
		return fmt.Errorf("stage %q variable %q: %w", s.name, name, err)
	}
	vr := s.variables[name]
	vr.Base = v
	s.variables[name] = vr
	s.replace(name, bind)
	return nil
}

// SetVariableAutomation reports false when the variable does not exist.
func (s *Stage) SetVariableAutomation(name string, a params.Automation) bool {
	vr, ok := s.variables[name]
	if !ok {
		return false
	}
	vr.Automation = a
	s.variables[name] = vr
	return true
}

// SetVariableOffset sets or, with a nil offset, clears the offset. It
// reports false when the variable does not exist.
func (s *Stage) SetVariableOffset(name string, o *params.Offset) bool {
	vr, ok := s.variables[name]
	if !ok {
		return false
	}
	if o != nil {
		cp := *o
		o = &cp
	}
	vr.Offset = o
	s.variables[name] = vr
	return true
}

func (s *Stage) RemoveVariable(name string) {
	delete(s.variables, name)
	if b, ok := s.uniforms[name]; ok {
		b.Release()
		delete(s.uniforms, name)
	}
}

// Update resolves every variable against env at beat and rebinds those
// whose value differs from the current binding. Conversion failures are
// collected; the other variables are still updated.
func (s *Stage) Update(b graphics.Backend, env map[string]params.Value, beat float64) error {
	var errs []error
	for name, vr := range s.variables {
		v, _ := vr.Resolve(env, beat)
		if cur, ok := s.uniforms[name]; ok && cur.Source.Equal(v) {
			continue
		}
		bind, err := uniform.FromValue(b, v, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %q variable %q: %w", s.name, name, err))
			continue
		}
		s.replace(name, bind)
	}
	return errors.Join(errs...)
}

func (s *Stage) replace(name string, bind uniform.Binding) {
	if old, ok := s.uniforms[name]; ok {
		old.Release()
	}
	s.uniforms[name] = bind
	logger.Logger().Debug("variable rebound", "stage", s.name, "name", name, "value", bind.Source)
}

// Close releases every binding.
func (s *Stage) Close() {
	for _, b := range s.uniforms {
		b.Release()
	}
	clear(s.uniforms)
}
