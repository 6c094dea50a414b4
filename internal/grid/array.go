package grid

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrLayout is returned when dimensions, shape, coordinates, or data are
// inconsistent with each other.
var ErrLayout = errors.New("invalid array layout")

// Number is the set of element types an Array can hold.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Layout describes the named axes of an array. Data is stored row-major,
// so the last dimension varies fastest.
type Layout struct {
	dims    []string
	shape   []int
	strides []int
	coords  map[string]Coord
}

// NewLayout validates and builds a Layout. coords may be nil and may omit
// any dimension.
func NewLayout(dims []string, shape []int, coords map[string]Coord) (Layout, error) {
	if len(dims) != len(shape) {
		return Layout{}, fmt.Errorf("%w: %d dims but %d shape entries", ErrLayout, len(dims), len(shape))
	}
	seen := make(map[string]bool, len(dims))
	for i, d := range dims {
		if d == "" {
			return Layout{}, fmt.Errorf("%w: empty name for axis %d", ErrLayout, i)
		}
		if seen[d] {
			return Layout{}, fmt.Errorf("%w: duplicate dimension %q", ErrLayout, d)
		}
		seen[d] = true
		if shape[i] < 0 {
			return Layout{}, fmt.Errorf("%w: negative size %d for dimension %q", ErrLayout, shape[i], d)
		}
	}

	l := Layout{
		dims:    append([]string(nil), dims...),
		shape:   append([]int(nil), shape...),
		strides: rowMajorStrides(shape),
		coords:  make(map[string]Coord, len(coords)),
	}
	for name, c := range coords {
		axis := l.Axis(name)
		if axis < 0 {
			return Layout{}, fmt.Errorf("%w: coordinate %q has no matching dimension", ErrLayout, name)
		}
		if c.Len() != shape[axis] {
			return Layout{}, fmt.Errorf("%w: coordinate %q has %d values for size %d", ErrLayout, name, c.Len(), shape[axis])
		}
		l.coords[name] = c.clone()
	}
	return l, nil
}

// Dims returns the dimension names in axis order.
func (l Layout) Dims() []string { return append([]string(nil), l.dims...) }

// Shape returns the size of each axis.
func (l Layout) Shape() []int { return append([]int(nil), l.shape...) }

// Strides returns the row-major element stride of each axis.
func (l Layout) Strides() []int { return append([]int(nil), l.strides...) }

// NDim returns the number of axes.
func (l Layout) NDim() int { return len(l.dims) }

// Size returns the total number of elements.
func (l Layout) Size() int {
	n := 1
	for _, s := range l.shape {
		n *= s
	}
	return n
}

// Axis returns the position of the named dimension, or -1.
func (l Layout) Axis(name string) int {
	for i, d := range l.dims {
		if d == name {
			return i
		}
	}
	return -1
}

// HasDim reports whether the named dimension exists.
func (l Layout) HasDim(name string) bool { return l.Axis(name) >= 0 }

// DimSize returns the size of the named dimension, or -1 if it is absent.
func (l Layout) DimSize(name string) int {
	axis := l.Axis(name)
	if axis < 0 {
		return -1
	}
	return l.shape[axis]
}

// DimStride returns the stride of the named dimension, or 0 if it is absent.
func (l Layout) DimStride(name string) int {
	axis := l.Axis(name)
	if axis < 0 {
		return 0
	}
	return l.strides[axis]
}

// Coord returns the coordinate of the named dimension.
func (l Layout) Coord(name string) (Coord, bool) {
	c, ok := l.coords[name]
	return c, ok
}

// Coords returns a copy of all coordinates keyed by dimension name.
func (l Layout) Coords() map[string]Coord {
	out := make(map[string]Coord, len(l.coords))
	for k, c := range l.coords {
		out[k] = c.clone()
	}
	return out
}

// Offset converts a multi-index to a flat row-major offset.
func (l Layout) Offset(idx ...int) (int, error) {
	if len(idx) != len(l.dims) {
		return 0, fmt.Errorf("%w: %d indices for %d dims", ErrLayout, len(idx), len(l.dims))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= l.shape[i] {
			return 0, fmt.Errorf("%w: index %d out of range for dimension %q (size %d)", ErrLayout, v, l.dims[i], l.shape[i])
		}
		off += v * l.strides[i]
	}
	return off, nil
}

// Array is a Layout with row-major data.
type Array[T Number] struct {
	Layout
	data []T
}

// Labels is an integer label mask: 0 is background, positive values are
// feature identifiers.
type Labels = Array[int64]

// Field is a floating point data field.
type Field = Array[float64]

// New builds an Array, copying data.
func New[T Number](dims []string, shape []int, data []T, coords map[string]Coord) (*Array[T], error) {
	l, err := NewLayout(dims, shape, coords)
	if err != nil {
		return nil, err
	}
	if len(data) != l.Size() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrLayout, len(data), shape)
	}
	return &Array[T]{Layout: l, data: append([]T(nil), data...)}, nil
}

// Zeros builds an Array of the given layout filled with zero values.
func Zeros[T Number](l Layout) *Array[T] {
	return &Array[T]{Layout: l, data: make([]T, l.Size())}
}

// MustNew is New for fixtures and tests; it panics on a layout error.
func MustNew[T Number](dims []string, shape []int, data []T, coords map[string]Coord) *Array[T] {
	a, err := New(dims, shape, data, coords)
	if err != nil {
		panic(err)
	}
	return a
}

// Data exposes the underlying row-major storage. Callers must treat it as
// read-only unless they own the array.
func (a *Array[T]) Data() []T { return a.data }

// At returns the element at the given multi-index.
func (a *Array[T]) At(idx ...int) (T, error) {
	off, err := a.Offset(idx...)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.data[off], nil
}

// Set stores v at the given multi-index.
func (a *Array[T]) Set(v T, idx ...int) error {
	off, err := a.Offset(idx...)
	if err != nil {
		return err
	}
	a.data[off] = v
	return nil
}

// Float64s converts the data to float64.
func (a *Array[T]) Float64s() []float64 {
	out := make([]float64, len(a.data))
	for i, v := range a.data {
		out[i] = float64(v)
	}
	return out
}

// AsField converts any numeric array to a Field sharing the same layout.
func AsField[T Number](a *Array[T]) *Field {
	return &Field{Layout: a.Layout, data: a.Float64s()}
}

// Offsets enumerates the flat offsets of every multi-index of shape in
// row-major order, using the given per-axis strides. A zero stride repeats
// the same element along that axis, which is how broadcasting is expressed.
func Offsets(shape, strides []int) []int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	out := make([]int, 0, n)
	if n == 0 {
		return out
	}
	idx := make([]int, len(shape))
	off := 0
	for {
		out = append(out, off)
		axis := len(shape) - 1
		for ; axis >= 0; axis-- {
			idx[axis]++
			off += strides[axis]
			if idx[axis] < shape[axis] {
				break
			}
			off -= strides[axis] * idx[axis]
			idx[axis] = 0
		}
		if axis < 0 {
			return out
		}
	}
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
