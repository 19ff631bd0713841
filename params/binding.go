package params

// Offset adds Weight times an environment value to a variable's base value.
type Offset struct {
	Reference string
	Weight    float32
}

// Variable is a stage-local parameter: a base value that may be offset by a
// named environment value and then animated.
type Variable struct {
	Base       Value
	Automation Automation
	Offset     *Offset
}

// Resolve computes the effective value of the variable for this frame.
// An offset whose reference is missing from env, or whose value does not
// combine with the base, is skipped. The second result reports whether the
// offset or the automation changed the base.
func (v Variable) Resolve(env map[string]Value, beat float64) (Value, bool) {
	out := v.Base
	changed := false

	if v.Offset != nil {
		if ref, ok := env[v.Offset.Reference]; ok {
			if scaled, ok := ref.Scale(v.Offset.Weight); ok {
				if sum, ok := out.Add(scaled); ok {
					out = sum
					changed = true
				}
			}
		}
	}

	if animated, ok := v.Automation.Apply(out, beat); ok {
		out = animated
		changed = true
	}
	return out, changed
}
