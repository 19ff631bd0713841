// Package inputs provides named parameter values to the render graph:
// static values from the project file, audio analysis and decoded images.
package inputs

import (
	"maps"
	"slices"
	"sync"

	"github.com/richinsley/goshadergraph/params"
)

// Provider publishes named values. The graph advances the provider's
// clock, then pulls every name it provides once per frame.
type Provider interface {
	// Provides lists the names Get can answer.
	Provides() []string
	// Get returns the current value of name. With interpolate set the
	// provider may smooth between samples.
	Get(name string, interpolate bool) (params.Value, bool)
	SetTime(seconds float64, locked bool)
	SetBeat(beat float64, locked bool)
	Close() error
}

// Values is a provider of fixed values that may be replaced at any time.
type Values struct {
	mu     sync.RWMutex
	values map[string]params.Value
}

func NewValues(values map[string]params.Value) *Values {
	return &Values{values: maps.Clone(values)}
}

func (v *Values) Provides() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Sorted(maps.Keys(v.values))
}

func (v *Values) Get(name string, _ bool) (params.Value, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[name]
	return val, ok
}

// Set replaces or adds a value.
func (v *Values) Set(name string, val params.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]params.Value)
	}
	v.values[name] = val
}

func (v *Values) Delete(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, name)
}

func (v *Values) SetTime(float64, bool) {}

func (v *Values) SetBeat(float64, bool) {}

func (v *Values) Close() error { return nil }
