package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes scalar from vector cells.
type Kind uint8

const (
	KindScalar Kind = iota
	KindVector
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a single table cell: a float64, or a small vector of float64 for
// reductions that return more than one number.
type Value struct {
	kind   Kind
	scalar float64
	vector []float64
}

// Scalar wraps a float64 cell.
func Scalar(v float64) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Vector wraps a vector cell. The slice is copied.
func Vector(v []float64) Value {
	return Value{kind: KindVector, vector: append([]float64{}, v...)}
}

// NaN is the scalar missing value.
func NaN() Value { return Scalar(math.NaN()) }

// Kind returns the cell kind.
func (v Value) Kind() Kind { return v.kind }

// Float returns the scalar value. Vector cells return NaN.
func (v Value) Float() float64 {
	if v.kind != KindScalar {
		return math.NaN()
	}
	return v.scalar
}

// Floats returns the vector value, or a one-element slice for scalars.
func (v Value) Floats() []float64 {
	if v.kind == KindScalar {
		return []float64{v.scalar}
	}
	return append([]float64{}, v.vector...)
}

// Len is 1 for scalars and the vector length otherwise.
func (v Value) Len() int {
	if v.kind == KindScalar {
		return 1
	}
	return len(v.vector)
}

// Identical reports bit-for-bit equality. NaN payloads are ignored so that
// any NaN matches any other NaN.
func (v Value) Identical(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindScalar {
		return sameBits(v.scalar, o.scalar)
	}
	if len(v.vector) != len(o.vector) {
		return false
	}
	for i := range v.vector {
		if !sameBits(v.vector[i], o.vector[i]) {
			return false
		}
	}
	return true
}

// String formats the cell; vectors are rendered as [a b c].
func (v Value) String() string {
	if v.kind == KindScalar {
		return formatFloat(v.scalar)
	}
	parts := make([]string, len(v.vector))
	for i, f := range v.vector {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sameBits(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Float64bits(a) == math.Float64bits(b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
