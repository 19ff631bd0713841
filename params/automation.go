package params

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// Curve selects the waveform of an Automation.
type Curve uint8

const (
	CurveNone Curve = iota
	CurveSine
	CurveTriangle
	CurveSaw
	CurveSquare
)

var curveNames = map[Curve]string{
	CurveNone:     "none",
	CurveSine:     "sine",
	CurveTriangle: "triangle",
	CurveSaw:      "saw",
	CurveSquare:   "square",
}

func (c Curve) String() string {
	if n, ok := curveNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Curve(%d)", c)
}

// ParseCurve maps a curve name to its Curve. The empty string is CurveNone.
func ParseCurve(s string) (Curve, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CurveNone, nil
	}
	for c, n := range curveNames {
		if n == s {
			return c, nil
		}
	}
	return CurveNone, fmt.Errorf("unknown automation curve %q", s)
}

// Automation animates a parameter over musical time. The zero value is
// inactive.
//
// Frequency is in cycles per beat and Phase in cycles; the curve output in
// [-1, 1] is scaled by Amplitude and added, together with Shift, to every
// lane of the base value.
type Automation struct {
	Curve     Curve
	Amplitude float32
	Frequency float32
	Phase     float32
	Shift     float32
}

// Active reports whether the automation can produce a value at all.
func (a Automation) Active() bool { return a.Curve != CurveNone }

// Wave evaluates the normalised curve at phase t (in cycles).
func (a Automation) Wave(t float32) float32 {
	f := t - math32.Floor(t)
	switch a.Curve {
	case CurveSine:
		return math32.Sin(2 * math32.Pi * f)
	case CurveTriangle:
		// 0 -> 0, 0.25 -> 1, 0.75 -> -1
		g := f + 0.25
		g -= math32.Floor(g)
		return 1 - 4*math32.Abs(g-0.5)
	case CurveSaw:
		return 2*f - 1
	case CurveSquare:
		if f < 0.5 {
			return 1
		}
		return -1
	}
	return 0
}

// Apply evaluates the automation for base at the given beat. It returns a
// replacement only when the curve is active, base is numeric and the result
// differs from base.
func (a Automation) Apply(base Value, beat float64) (Value, bool) {
	if !a.Active() {
		return Value{}, false
	}
	delta := a.Shift + a.Amplitude*a.Wave(float32(beat)*a.Frequency+a.Phase)

	var out Value
	switch base.kind {
	case KindFloat, KindFloat2, KindFloat3, KindFloat4:
		f := base.floats
		for i := range base.kind.components() {
			f[i] += delta
		}
		out = vector(base.kind, f)
	case KindInteger:
		out = Integer(base.i + roundInt(delta))
	default:
		return Value{}, false
	}
	if out.Equal(base) {
		return Value{}, false
	}
	return out, true
}
