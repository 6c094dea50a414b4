package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelcyno/tobac/internal/dataset"
	"github.com/kelcyno/tobac/internal/db"
	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
	"github.com/kelcyno/tobac/internal/monitoring"
)

func writeDataset(t *testing.T, withMask bool) string {
	t.Helper()
	t0 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	coords := map[string]grid.Coord{"time": grid.TimeCoord(t0, t0.Add(5*time.Minute))}
	ds := &dataset.Dataset{
		Fields: []*grid.Field{grid.MustNew([]string{"time", "x"}, []int{2, 4}, []float64{
			9, 8, 0, 7,
			0, 6, 6, 0,
		}, coords)},
		Features: []features.Row{
			{Feature: 1, Frame: 0, Time: t0, Extra: map[string]float64{"hdim_1": 0}},
			{Feature: 2, Frame: 0, Time: t0, Extra: map[string]float64{"hdim_1": 3}},
			{Feature: 3, Frame: 1, Time: t0.Add(5 * time.Minute), Extra: map[string]float64{"hdim_1": 1}},
		},
	}
	if withMask {
		ds.Mask = grid.MustNew([]string{"time", "x"}, []int{2, 4}, []int64{
			1, 1, 0, 2,
			0, 3, 3, 0,
		}, coords)
	}
	path := filepath.Join(t.TempDir(), "ds.json")
	require.NoError(t, dataset.Save(path, ds))
	return path
}

func quiet(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(t.Logf) })
}

func TestRun_CSV(t *testing.T) {
	quiet(t)
	o, err := parseFlags([]string{"-dataset", writeDataset(t, true), "-csv", "-", "-check"}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "feature,frame,time,hdim_1,mean,max,count", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,0,"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], ",8.5,9,2"), lines[1])
	assert.True(t, strings.HasSuffix(lines[3], ",6,6,2"), lines[3])
}

func TestRun_SegmentStoreAndPlot(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.yaml")
	require.NoError(t, os.WriteFile(stats, []byte(`
statistics:
  - {name: segment_max, func: max}
  - {name: segment_min, func: min}
  - {name: percentiles, func: percentile, params: {q: 95}}
`), 0o644))
	cfg := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"segmentation_threshold": 5}`), 0o644))
	dbPath := filepath.Join(dir, "runs.db")
	chart := filepath.Join(dir, "chart.html")
	hist := filepath.Join(dir, "hist.png")

	o, err := parseFlags([]string{
		"-dataset", writeDataset(t, false),
		"-stats", stats,
		"-config", cfg,
		"-segment", "-check",
		"-db", dbPath, "-label", "unit",
		"-chart", chart, "-hist", hist,
		"-workers", "2",
	}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, run(o, io.Discard))

	database, err := db.OpenDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := db.NewFeatureStore(database).ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "unit", runs[0].Label)
	assert.Equal(t, []string{"hdim_1", "ncells", "segment_max", "segment_min", "percentiles"}, runs[0].Columns)

	tbl, err := db.NewFeatureStore(database).LoadTable(runs[0].RunID)
	require.NoError(t, err)
	maxes, _ := tbl.Floats("segment_max")
	assert.Equal(t, []float64{9, 7, 6}, maxes)

	for _, p := range []string{chart, hist} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRun_MissingMask(t *testing.T) {
	quiet(t)
	o, err := parseFlags([]string{"-dataset", writeDataset(t, false)}, io.Discard)
	require.NoError(t, err)
	assert.ErrorContains(t, run(o, io.Discard), "no mask")
}

func TestRun_List(t *testing.T) {
	o, err := parseFlags([]string{"-list"}, io.Discard)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.Contains(t, out.String(), "weighted_mean")
}

func TestParseFlags_RequiresDataset(t *testing.T) {
	_, err := parseFlags(nil, io.Discard)
	assert.Error(t, err)
}

func TestRun_Version(t *testing.T) {
	o, err := parseFlags([]string{"-version"}, io.Discard)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.True(t, strings.HasPrefix(out.String(), "bulkstats dev"), out.String())
}
