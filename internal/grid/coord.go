package grid

import (
	"math"
	"time"
)

// Coord holds the coordinate values of one dimension. Exactly one of Values
// or Times is populated; a dimension without coordinates has no Coord at all.
type Coord struct {
	Values []float64
	Times  []time.Time
}

// FloatCoord builds a numeric coordinate.
func FloatCoord(values ...float64) Coord {
	return Coord{Values: append([]float64(nil), values...)}
}

// TimeCoord builds a timestamp coordinate.
func TimeCoord(times ...time.Time) Coord {
	return Coord{Times: append([]time.Time(nil), times...)}
}

// Range builds the numeric coordinate 0, 1, ..., n-1.
func Range(n int) Coord {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return Coord{Values: vals}
}

// Len returns the number of coordinate values.
func (c Coord) Len() int {
	if c.Times != nil {
		return len(c.Times)
	}
	return len(c.Values)
}

// IsTime reports whether the coordinate holds timestamps.
func (c Coord) IsTime() bool {
	return c.Times != nil
}

// Equal reports whether two coordinates hold the same values in the same
// order. Timestamps compare by instant, numbers by value with NaN equal to NaN.
func (c Coord) Equal(o Coord) bool {
	if c.IsTime() != o.IsTime() || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if !c.equalAt(i, o, i) {
			return false
		}
	}
	return true
}

// IndexOf returns the position in c of the i-th value of o, or -1 when c
// does not contain it.
func (c Coord) IndexOf(o Coord, i int) int {
	if c.IsTime() != o.IsTime() || i < 0 || i >= o.Len() {
		return -1
	}
	for j := 0; j < c.Len(); j++ {
		if c.equalAt(j, o, i) {
			return j
		}
	}
	return -1
}

// String formats the i-th coordinate value for error messages.
func (c Coord) String(i int) string {
	if i < 0 || i >= c.Len() {
		return "<out of range>"
	}
	if c.IsTime() {
		return c.Times[i].UTC().Format(time.RFC3339Nano)
	}
	return formatFloat(c.Values[i])
}

func (c Coord) equalAt(i int, o Coord, j int) bool {
	if c.IsTime() {
		return c.Times[i].Equal(o.Times[j])
	}
	a, b := c.Values[i], o.Values[j]
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func (c Coord) clone() Coord {
	out := Coord{}
	if c.Times != nil {
		out.Times = append([]time.Time(nil), c.Times...)
	}
	if c.Values != nil {
		out.Values = append([]float64(nil), c.Values...)
	}
	return out
}
