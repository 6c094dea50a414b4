package bulkstats

import "github.com/kelcyno/tobac/internal/testutil"

var (
	t0 = testutil.T0
	t1 = testutil.T1

	labelData = testutil.LabelData
)

var (
	testMask    = testutil.Mask
	testTable   = testutil.Table
	testValues  = testutil.Values
	testWeights = testutil.Weights
)

// builtin builds a statistic from the default registry, named after fn.
func builtin(fn string, params Params) Statistic {
	s, err := DefaultRegistry().Build(fn, fn, params)
	if err != nil {
		panic(err)
	}
	return s
}
