package bulkstats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kelcyno/tobac/internal/features"
)

// Built-in reductions. Reductions with a natural value for empty input
// (sum, count, mean) return it; the others return ErrEmptyInput.

func meanOf(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func sumOf(x []float64) float64 { return floats.Sum(x) }

func countOf(x []float64) float64 { return float64(len(x)) }

func stdOf(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.PopStdDev(x, nil)
}

func weightedMean(x, w []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, w)
}

func weightedSum(x, w []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Dot(x, w)
}

// nonEmpty lifts a one-field reduction that is undefined for no input.
func nonEmpty(fn func(x []float64) float64) Func {
	return func(args [][]float64, _ Params) (features.Value, error) {
		if len(args) != 1 {
			return features.Value{}, fmt.Errorf("%w: want 1, got %d", ErrArity, len(args))
		}
		if len(args[0]) == 0 {
			return features.Value{}, ErrEmptyInput
		}
		return features.Scalar(fn(args[0])), nil
	}
}

// median averages the two middle values for an even count.
func median(x []float64) float64 {
	s := slices.Clone(x)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// percentile reads q (0..100) from params. A scalar q yields a scalar; a
// list yields a vector in the same order.
func percentile(args [][]float64, params Params) (features.Value, error) {
	if len(args) != 1 {
		return features.Value{}, fmt.Errorf("%w: want 1, got %d", ErrArity, len(args))
	}
	qs, scalar, ok, err := params.Floats("q")
	if err != nil {
		return features.Value{}, err
	}
	if !ok || len(qs) == 0 {
		return features.Value{}, fmt.Errorf("%w: percentile requires q", ErrParam)
	}
	for _, q := range qs {
		if math.IsNaN(q) || q < 0 || q > 100 {
			return features.Value{}, fmt.Errorf("%w: q=%g outside [0, 100]", ErrParam, q)
		}
	}
	if len(args[0]) == 0 {
		return features.Value{}, ErrEmptyInput
	}
	sorted := slices.Clone(args[0])
	slices.Sort(sorted)
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = linearQuantile(sorted, q/100)
	}
	if scalar {
		return features.Scalar(out[0]), nil
	}
	return features.Vector(out), nil
}

// linearQuantile interpolates between the order statistics around
// h = (n-1)*p, so p=0.5 matches median. s must be sorted and non-empty.
func linearQuantile(s []float64, p float64) float64 {
	h := float64(len(s)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	return s[int(lo)] + (h-lo)*(s[int(hi)]-s[int(lo)])
}

func registerBuiltins(r *Registry) {
	for _, def := range []Definition{
		{Name: "mean", Arity: 1, Description: "Arithmetic mean of the region; NaN when empty.", Func: Scalar(meanOf)},
		{Name: "sum", Arity: 1, Description: "Sum of the region; 0 when empty.", Func: Scalar(sumOf)},
		{Name: "count", Arity: 1, Description: "Number of selected values.", Func: Scalar(countOf)},
		{Name: "std", Arity: 1, Description: "Population standard deviation; NaN when empty.", Func: Scalar(stdOf)},
		{Name: "min", Arity: 1, Description: "Minimum of the region.", Func: nonEmpty(floats.Min)},
		{Name: "max", Arity: 1, Description: "Maximum of the region.", Func: nonEmpty(floats.Max)},
		{Name: "median", Arity: 1, Description: "Median of the region.", Func: nonEmpty(median)},
		{
			Name:        "percentile",
			Arity:       1,
			Description: "Linearly interpolated percentile(s) q in [0, 100]; a list of q yields a vector.",
			Defaults:    Params{"q": 50.0},
			Func:        percentile,
		},
		{Name: "weighted_mean", Arity: 2, Description: "Mean of values weighted by the second field.", Func: Weighted(weightedMean)},
		{Name: "weighted_sum", Arity: 2, Description: "Sum of values times the second field.", Func: Weighted(weightedSum)},
	} {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}
