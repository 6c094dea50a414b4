package grid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// coordJSON is the wire form of a Coord. Times are RFC 3339 strings.
type coordJSON struct {
	Values []float64   `json:"values,omitempty"`
	Times  []time.Time `json:"times,omitempty"`
}

// arrayJSON is the wire form of an Array. Missing (NaN) elements of
// floating point arrays are written as null.
type arrayJSON struct {
	Dims   []string             `json:"dims"`
	Shape  []int                `json:"shape"`
	Coords map[string]coordJSON `json:"coords,omitempty"`
	Data   json.RawMessage      `json:"data"`
}

// MarshalJSON encodes the array as {"dims","shape","coords","data"}.
func (a *Array[T]) MarshalJSON() ([]byte, error) {
	data, err := encodeData(a.data)
	if err != nil {
		return nil, err
	}
	out := arrayJSON{
		Dims:   a.dims,
		Shape:  a.shape,
		Coords: make(map[string]coordJSON, len(a.coords)),
		Data:   data,
	}
	for name, c := range a.coords {
		out.Coords[name] = coordJSON{Values: c.Values, Times: c.Times}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates the wire form produced by MarshalJSON.
func (a *Array[T]) UnmarshalJSON(b []byte) error {
	var in arrayJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	data, err := decodeData[T](in.Data)
	if err != nil {
		return err
	}
	coords := make(map[string]Coord, len(in.Coords))
	for name, c := range in.Coords {
		if len(c.Times) > 0 && len(c.Values) > 0 {
			return fmt.Errorf("%w: coordinate %q has both values and times", ErrLayout, name)
		}
		coords[name] = Coord{Values: c.Values, Times: c.Times}
	}
	decoded, err := New(in.Dims, in.Shape, data, coords)
	if err != nil {
		return err
	}
	*a = *decoded
	return nil
}

func encodeData[T Number](data []T) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range data {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(float64(v)) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("data element %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// decodeData reads a data list; null becomes NaN and is only accepted for
// floating point element types.
func decodeData[T Number](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ptrs []*T
	if err := json.Unmarshal(raw, &ptrs); err != nil {
		return nil, err
	}
	half := 0.5
	isFloat := T(half) != 0
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		switch {
		case p != nil:
			out[i] = *p
		case isFloat:
			out[i] = T(math.NaN())
		default:
			return nil, fmt.Errorf("%w: null data element %d in an integer array", ErrLayout, i)
		}
	}
	return out, nil
}
