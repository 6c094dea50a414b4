package bulkstats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelcyno/tobac/internal/features"
)

func call(t *testing.T, s Statistic, args ...[]float64) features.Value {
	t.Helper()
	inv, err := resolve([]Statistic{s})
	require.NoError(t, err)
	v, err := inv[0].call(args)
	require.NoError(t, err)
	return v
}

func TestDefaultRegistry_List(t *testing.T) {
	var names []string
	for _, d := range DefaultRegistry().List() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
	}
	assert.Equal(t, []string{
		"count", "max", "mean", "median", "min", "percentile",
		"std", "sum", "weighted_mean", "weighted_sum",
	}, names)
}

func TestBuiltins(t *testing.T) {
	x := []float64{4, 1, 3, 2}
	tests := []struct {
		fn     string
		params Params
		args   [][]float64
		want   float64
	}{
		{"mean", nil, [][]float64{x}, 2.5},
		{"sum", nil, [][]float64{x}, 10},
		{"count", nil, [][]float64{x}, 4},
		{"min", nil, [][]float64{x}, 1},
		{"max", nil, [][]float64{x}, 4},
		{"median", nil, [][]float64{x}, 2.5},
		{"median", nil, [][]float64{{5, 1, 3}}, 3},
		{"std", nil, [][]float64{{2, 4, 4, 4, 5, 5, 7, 9}}, 2},
		{"percentile", Params{"q": 100}, [][]float64{x}, 4},
		{"percentile", Params{"q": 0}, [][]float64{x}, 1},
		{"weighted_mean", nil, [][]float64{{1, 2, 3}, {0, 0, 1}}, 3},
		{"weighted_sum", nil, [][]float64{{1, 2, 3}, {1, 0, 2}}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			got := call(t, builtin(tt.fn, tt.params), tt.args...)
			assert.Equal(t, features.KindScalar, got.Kind())
			assert.InDelta(t, tt.want, got.Float(), 1e-12)
		})
	}
}

func TestBuiltins_EmptyInput(t *testing.T) {
	empty := []float64{}
	assert.True(t, math.IsNaN(call(t, builtin("mean", nil), empty).Float()))
	assert.True(t, math.IsNaN(call(t, builtin("std", nil), empty).Float()))
	assert.Equal(t, 0.0, call(t, builtin("sum", nil), empty).Float())
	assert.Equal(t, 0.0, call(t, builtin("weighted_sum", nil), empty, empty).Float())

	for _, fn := range []string{"min", "max", "median", "percentile"} {
		inv, err := resolve([]Statistic{builtin(fn, nil)})
		require.NoError(t, err)
		_, err = inv[0].call([][]float64{empty})
		assert.ErrorIs(t, err, ErrEmptyInput, fn)
	}
}

func TestPercentile_Params(t *testing.T) {
	inv, err := resolve([]Statistic{builtin("percentile", Params{"q": 150})})
	require.NoError(t, err)
	_, err = inv[0].call([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrParam)

	inv, err = resolve([]Statistic{builtin("percentile", Params{"q": "high"})})
	require.NoError(t, err)
	_, err = inv[0].call([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrParam)

	v := call(t, builtin("percentile", Params{"q": []int{100, 0}}), []float64{3, 1, 2})
	assert.Equal(t, []float64{3, 1}, v.Floats())
}

func TestPercentile_LinearBetweenNeighbours(t *testing.T) {
	for _, x := range [][]float64{{4, 1, 3, 2}, {1.5, 10, 3, 7}, {5, 1, 3}} {
		p := call(t, builtin("percentile", Params{"q": 50}), x)
		m := call(t, builtin("median", nil), x)
		assert.InDelta(t, m.Float(), p.Float(), 1e-12, "%v", x)
	}

	x := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	assert.InDelta(t, 9.55, call(t, builtin("percentile", Params{"q": 95}), x).Float(), 1e-12)
	assert.InDelta(t, 3.25, call(t, builtin("percentile", Params{"q": 25}), x).Float(), 1e-12)
	assert.InDelta(t, 7.0, call(t, builtin("percentile", Params{"q": 50}), []float64{7}).Float(), 1e-12)
}

func TestPercentile_DoesNotReorderInput(t *testing.T) {
	x := []float64{3, 1, 2}
	call(t, builtin("percentile", Params{"q": 50}), x)
	call(t, builtin("median", nil), x)
	assert.Equal(t, []float64{3, 1, 2}, x)
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(Definition{Name: "nofunc"}))
	require.Error(t, r.Register(Definition{Func: Scalar(sumOf)}))

	require.NoError(t, r.Register(Definition{
		Name:     "scaled",
		Arity:    1,
		Defaults: Params{"factor": 2.0},
		Func: func(args [][]float64, p Params) (features.Value, error) {
			f, _, err := p.Float("factor")
			if err != nil {
				return features.Value{}, err
			}
			return features.Scalar(f * sumOf(args[0])), nil
		},
	}))
	assert.Equal(t, 1, r.Arity("scaled"))
	assert.Equal(t, 0, r.Arity("missing"))

	s, err := r.Build("", "scaled", nil)
	require.NoError(t, err)
	assert.Equal(t, "scaled", s.Name)
	assert.Equal(t, 6.0, call(t, s, []float64{1, 2}).Float())

	s, err = r.Build("tripled", "scaled", Params{"factor": 3})
	require.NoError(t, err)
	assert.Equal(t, 9.0, call(t, s, []float64{1, 2}).Float())

	_, err = r.Build("x", "missing", nil)
	assert.ErrorIs(t, err, ErrInvalidStatistic)
}

func TestParseStatistics(t *testing.T) {
	stats, err := ParseStatistics([]byte(`
statistics:
  - name: segment_max
    func: max
  - name: p95
    func: percentile
    params: {q: 95}
  - name: quartiles
    func: percentile
    params:
      q: [25, 75]
  - func: mean
`), DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, "segment_max", stats[0].Name)
	assert.Equal(t, "p95", stats[1].Name)
	assert.Equal(t, "mean", stats[3].Name)

	v := call(t, stats[2], []float64{1, 2, 3, 4, 5})
	assert.Equal(t, features.KindVector, v.Kind())
	assert.Equal(t, 2, v.Len())

	_, err = Compute(testTable(), testMask(), stats, testValues())
	require.NoError(t, err)
}

func TestParseStatistics_Errors(t *testing.T) {
	reg := DefaultRegistry()
	for name, doc := range map[string]string{
		"empty":        `statistics: []`,
		"unknown func": "statistics:\n  - {name: a, func: mode}\n",
		"missing func": "statistics:\n  - {name: a}\n",
		"unknown key":  "statistics:\n  - {name: a, func: max, weights: true}\n",
		"not yaml":     "statistics: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStatistics([]byte(doc), reg)
			assert.Error(t, err)
		})
	}
}

func TestLoadStatistics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statistics:\n  - {name: total, func: sum}\n"), 0o644))
	stats, err := LoadStatistics(path, DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "total", stats[0].Name)

	_, err = LoadStatistics(filepath.Join(t.TempDir(), "missing.yaml"), DefaultRegistry())
	assert.Error(t, err)
}
