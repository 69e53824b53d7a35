// Package aggregate merges salary observations from sources of different
// trust into one value per experience level. This is part of the Functional
// Core - no I/O, only pure functions.
package aggregate

import (
	"fmt"
	"math"
)

// Level is an experience band.
type Level string

const (
	LevelJunior    Level = "junior"
	LevelConfirmed Level = "confirmed"
	LevelSenior    Level = "senior"
)

// Levels lists every level in ascending seniority.
var Levels = []Level{LevelJunior, LevelConfirmed, LevelSenior}

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown salary level %q", s)
}

// Value is an annual gross salary triple. Nil fields are unknown.
type Value struct {
	Min    *int `json:"min,omitempty"`
	Max    *int `json:"max,omitempty"`
	Median *int `json:"median,omitempty"`
}

// IsEmpty reports whether no field is known.
func (v Value) IsEmpty() bool {
	return v.Min == nil && v.Max == nil && v.Median == nil
}

// Observation is what one source reported for one level.
type Observation struct {
	Source string
	Weight float64
	Level  Level
	Value  Value
}

// ValidWeight reports whether w is a usable trust weight, i.e. in (0,1].
func ValidWeight(w float64) bool {
	return w > 0 && w <= 1 && !math.IsNaN(w)
}

type accumulator struct {
	sum    float64
	weight float64
}

func (a *accumulator) add(v *int, w float64) {
	if v == nil {
		return
	}
	a.sum += float64(*v) * w
	a.weight += w
}

func (a accumulator) result() *int {
	if a.weight == 0 {
		return nil
	}
	r := int(math.Round(a.sum / a.weight))
	return &r
}

// Aggregate combines observations into one Value per level. Each field is
// the weight-averaged mean of the sources that reported it, rounded half
// away from zero; a field nobody reported stays nil. Observations with an
// invalid weight are ignored. Levels with no observation at all are absent.
func Aggregate(obs []Observation) map[Level]Value {
	type fields struct{ min, max, median accumulator }
	acc := make(map[Level]*fields)

	for _, o := range obs {
		if !ValidWeight(o.Weight) {
			continue
		}
		f, ok := acc[o.Level]
		if !ok {
			f = &fields{}
			acc[o.Level] = f
		}
		f.min.add(o.Value.Min, o.Weight)
		f.max.add(o.Value.Max, o.Weight)
		f.median.add(o.Value.Median, o.Weight)
	}

	out := make(map[Level]Value, len(acc))
	for level, f := range acc {
		out[level] = Value{
			Min:    f.min.result(),
			Max:    f.max.result(),
			Median: f.median.result(),
		}
	}
	return out
}

// Int returns a pointer to v, for building Values.
func Int(v int) *int {
	return &v
}
