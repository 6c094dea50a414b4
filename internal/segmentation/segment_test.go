package segmentation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelcyno/tobac/internal/bulkstats"
	"github.com/kelcyno/tobac/internal/config"
	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
)

var (
	t0 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2000, 1, 1, 0, 5, 0, 0, time.UTC)
)

func blobField() *grid.Field {
	return grid.MustNew([]string{"time", "y", "x"}, []int{2, 5, 6}, []float64{
		9, 8, 0, 0, 0, 0,
		8, 7, 0, 0, 6, 0,
		0, 0, 0, 5, 9, 0,
		0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0,

		0, 0, 0, 0, 0, 0,
		0, 7, 7, 0, 0, 0,
		0, 7, 8, 9, 9, 9,
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,
	}, map[string]grid.Coord{"time": grid.TimeCoord(t0, t1)})
}

func blobTable() *features.Table {
	return features.MustNewTable([]features.Row{
		{Feature: 1, Frame: 0, Time: t0, Extra: map[string]float64{"hdim_1": 0, "hdim_2": 0}},
		{Feature: 2, Frame: 0, Time: t0, Extra: map[string]float64{"hdim_1": 2.2, "hdim_2": 3.9}},
		{Feature: 3, Frame: 1, Time: t1, Extra: map[string]float64{"hdim_1": 2, "hdim_2": 5}},
		{Feature: 4, Frame: 1, Time: t1, Extra: map[string]float64{"hdim_1": 1, "hdim_2": 1}},
	})
}

func TestSegment_Regions(t *testing.T) {
	mask, out, err := Segment(blobTable(), blobField(), Config{Threshold: 5})
	require.NoError(t, err)

	assert.Equal(t, []int64{
		1, 1, 0, 0, 0, 0,
		1, 1, 0, 0, 2, 0,
		0, 0, 0, 2, 2, 0,
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,

		0, 0, 0, 0, 0, 0,
		0, 3, 3, 0, 0, 0,
		0, 3, 3, 3, 3, 3,
		0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0,
	}, mask.Data())
	assert.Equal(t, []string{"time", "y", "x"}, mask.Dims())

	// Feature 4 is seeded inside region 3, which was claimed first.
	cells, ok := out.Floats(ColumnCells)
	require.True(t, ok)
	assert.Equal(t, []float64{4, 3, 7, 0}, cells)
}

func TestSegment_MinimumTarget(t *testing.T) {
	field := grid.MustNew([]string{"time", "x"}, []int{1, 5}, []float64{-3, -2, 4, -5, -1}, nil)
	table := features.MustNewTable([]features.Row{
		{Feature: 7, Extra: map[string]float64{"hdim_1": 0}},
		{Feature: 8, Extra: map[string]float64{"hdim_1": 4}},
	})
	mask, out, err := Segment(table, field, Config{Threshold: -1, Target: TargetMinimum})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 7, 0, 8, 8}, mask.Data())
	cells, _ := out.Floats(ColumnCells)
	assert.Equal(t, []float64{2, 2}, cells)
}

func TestSegment_InlineStatisticsMatchRecompute(t *testing.T) {
	reg := bulkstats.DefaultRegistry()
	var stats []bulkstats.Statistic
	for _, spec := range []struct {
		name, fn string
		params   bulkstats.Params
	}{
		{"segment_max", "max", nil},
		{"segment_min", "min", nil},
		{"percentiles", "percentile", bulkstats.Params{"q": 95}},
	} {
		s, err := reg.Build(spec.name, spec.fn, spec.params)
		require.NoError(t, err)
		stats = append(stats, s)
	}

	field := blobField()
	cfg := Config{
		Threshold:  5,
		Statistics: stats,
		Engine:     bulkstats.NewEngine(bulkstats.Options{Empty: bulkstats.EmptyDefault}),
	}
	mask, out, err := Segment(blobTable(), field, cfg)
	require.NoError(t, err)

	for _, s := range stats {
		assert.True(t, out.HasColumn(s.Name), s.Name)
	}
	maxes, _ := out.Floats("segment_max")
	assert.Equal(t, []float64{9, 9, 9}, maxes[:3])

	again, err := cfg.Engine.Compute(out, mask, stats, field)
	require.NoError(t, err)
	assert.True(t, again.Equal(out), "recomputed statistics differ from inline ones")
}

func TestSegment_3D(t *testing.T) {
	data := make([]float64, 2*3*3)
	data[4] = 10  // z=0, centre
	data[13] = 10 // z=1, centre
	data[14] = 10 // z=1, right of centre
	field := grid.MustNew([]string{"time", "z", "y", "x"}, []int{1, 2, 3, 3}, data, nil)
	table := features.MustNewTable([]features.Row{
		{Feature: 1, Extra: map[string]float64{"vdim": 0, "hdim_1": 1, "hdim_2": 1}},
	})
	_, out, err := Segment(table, field, Config{Threshold: 1})
	require.NoError(t, err)
	cells, _ := out.Floats(ColumnCells)
	assert.Equal(t, []float64{3}, cells)
}

func TestSegment_Errors(t *testing.T) {
	field := blobField()

	_, _, err := Segment(blobTable().Drop("hdim_2"), field, Config{})
	assert.True(t, errors.Is(err, ErrSeedColumn))

	_, _, err = Segment(blobTable(), field, Config{SeedColumns: []string{"hdim_1"}})
	assert.Error(t, err)

	noTime := grid.MustNew([]string{"y", "x"}, []int{1, 1}, []float64{1}, nil)
	_, _, err = Segment(blobTable(), noTime, Config{})
	assert.Error(t, err)

	late := features.MustNewTable([]features.Row{
		{Feature: 1, Frame: 5, Extra: map[string]float64{"hdim_1": 0, "hdim_2": 0}},
	})
	_, _, err = Segment(late, field, Config{})
	assert.Error(t, err)
}

func TestSegment_RejectsNonPositiveIDOutsideGrid(t *testing.T) {
	for _, seed := range []map[string]float64{
		{"hdim_1": 0, "hdim_2": 0},
		{"hdim_1": -3, "hdim_2": 40},
	} {
		table := features.MustNewTable([]features.Row{
			{Feature: 0, Frame: 0, Time: t0, Extra: seed},
		})
		_, _, err := Segment(table, blobField(), Config{Threshold: 5})
		require.Error(t, err, "seed %v", seed)
		assert.Contains(t, err.Error(), "must be positive")
	}
}

func TestConfigFromTuning(t *testing.T) {
	target := "minimum"
	threshold := 2.5
	workers := 3
	cfg, err := ConfigFromTuning(&config.BulkStatsConfig{
		SegmentationTarget:    &target,
		SegmentationThreshold: &threshold,
		Workers:               &workers,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, TargetMinimum, cfg.Target)
	assert.Equal(t, 2.5, cfg.Threshold)
	assert.Equal(t, 3, cfg.Engine.Options().Workers)

	_, err = ParseTarget("median")
	assert.Error(t, err)
}
