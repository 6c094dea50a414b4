package bulkstats

import (
	"fmt"
	"sort"

	"github.com/kelcyno/tobac/internal/features"
)

// Params carries keyword parameters for a reduction, e.g. {"q": 95}.
type Params map[string]any

// Float returns a numeric parameter. ok is false when the key is absent.
func (p Params) Float(key string) (v float64, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	v, err = toFloat(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s: %v", ErrParam, key, err)
	}
	return v, true, nil
}

// Floats returns a numeric list parameter. A scalar is returned as a
// one-element list with scalar set to true.
func (p Params) Floats(key string) (vals []float64, scalar, ok bool, err error) {
	raw, ok := p[key]
	if !ok {
		return nil, false, false, nil
	}
	switch vv := raw.(type) {
	case []float64:
		return append([]float64(nil), vv...), false, true, nil
	case []int:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, false, true, nil
	case []any:
		out := make([]float64, len(vv))
		for i, x := range vv {
			f, err := toFloat(x)
			if err != nil {
				return nil, false, true, fmt.Errorf("%w: %s[%d]: %v", ErrParam, key, i, err)
			}
			out[i] = f
		}
		return out, false, true, nil
	}
	f, err := toFloat(raw)
	if err != nil {
		return nil, false, true, fmt.Errorf("%w: %s: %v", ErrParam, key, err)
	}
	return []float64{f}, true, true, nil
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// merge returns defaults overridden by p. The receiver wins on conflicts.
func (p Params) merge(defaults Params) Params {
	out := make(Params, len(p)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Func reduces the selected cells to a table value. args holds one selection
// per field passed to Compute, in the same order and of equal length; params
// is nil for the bare form of a statistic.
type Func func(args [][]float64, params Params) (features.Value, error)

// Statistic names an output column and the reduction that fills it. A nil
// Params is the bare form; a non-nil Params is the parameterized form.
type Statistic struct {
	Name   string
	Func   Func
	Params Params

	defaults Params
}

// Unary is the bare form of a statistic: the reduction is called with the
// field selections only.
func Unary(name string, fn Func) Statistic {
	return Statistic{Name: name, Func: fn}
}

// Parameterized bundles a reduction with keyword parameters.
func Parameterized(name string, fn Func, params Params) Statistic {
	if params == nil {
		params = Params{}
	}
	return Statistic{Name: name, Func: fn, Params: params}
}

// Scalar lifts a one-field reduction such as a mean or maximum.
func Scalar(fn func(x []float64) float64) Func {
	return func(args [][]float64, _ Params) (features.Value, error) {
		if len(args) != 1 {
			return features.Value{}, fmt.Errorf("%w: want 1, got %d", ErrArity, len(args))
		}
		return features.Scalar(fn(args[0])), nil
	}
}

// Weighted lifts a two-field reduction that receives (values, weights).
func Weighted(fn func(x, w []float64) float64) Func {
	return func(args [][]float64, _ Params) (features.Value, error) {
		if len(args) != 2 {
			return features.Value{}, fmt.Errorf("%w: want 2, got %d", ErrArity, len(args))
		}
		return features.Scalar(fn(args[0], args[1])), nil
	}
}

// VectorOf lifts a one-field reduction that returns several numbers.
func VectorOf(fn func(x []float64) []float64) Func {
	return func(args [][]float64, _ Params) (features.Value, error) {
		if len(args) != 1 {
			return features.Value{}, fmt.Errorf("%w: want 1, got %d", ErrArity, len(args))
		}
		return features.Vector(fn(args[0])), nil
	}
}

// invoker is a statistic resolved into a single call signature, so the
// per-row loop never inspects the statistic's form.
type invoker struct {
	name string
	call func(args [][]float64) (features.Value, error)
}

// resolve validates the statistics and resolves each into an invoker.
func resolve(stats []Statistic) ([]invoker, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: no statistics requested", ErrInvalidStatistic)
	}
	seen := make(map[string]bool, len(stats))
	out := make([]invoker, len(stats))
	for i, s := range stats {
		switch {
		case s.Name == "":
			return nil, fmt.Errorf("%w: statistic %d has no name", ErrInvalidStatistic, i)
		case features.IsReserved(s.Name):
			return nil, fmt.Errorf("%w: %q collides with a required column", ErrInvalidStatistic, s.Name)
		case seen[s.Name]:
			return nil, fmt.Errorf("%w: duplicate statistic %q", ErrInvalidStatistic, s.Name)
		case s.Func == nil:
			return nil, fmt.Errorf("%w: %q has no function", ErrInvalidStatistic, s.Name)
		}
		seen[s.Name] = true

		fn := s.Func
		if s.Params == nil && s.defaults == nil {
			out[i] = invoker{name: s.Name, call: func(args [][]float64) (features.Value, error) {
				return fn(args, nil)
			}}
			continue
		}
		params := s.Params.merge(s.defaults)
		out[i] = invoker{name: s.Name, call: func(args [][]float64) (features.Value, error) {
			return fn(args, params)
		}}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
