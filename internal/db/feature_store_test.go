package db

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelcyno/tobac/internal/bulkstats"
	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/monitoring"
	"github.com/kelcyno/tobac/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db, err := NewDB(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleTable(t *testing.T) *features.Table {
	t.Helper()
	t0 := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := features.MustNewTable([]features.Row{
		{Feature: 1, Frame: 0, Time: t0},
		{Feature: 2, Frame: 0, Time: t0},
		{Feature: 3, Frame: 1, Time: t0.Add(5 * time.Minute)},
		{Feature: 4, Frame: 1},
	})
	out, err := tbl.Merge(
		features.FloatColumn("mean", []float64{2, math.NaN(), 3, 2.5}),
		features.Column{Name: "quartiles", Values: []features.Value{
			features.Vector([]float64{1, 3}),
			features.Vector([]float64{math.NaN(), 2}),
			features.Vector([]float64{2, 4}),
			features.Vector(nil),
		}},
	)
	require.NoError(t, err)
	return out
}

func TestMigrateVersion(t *testing.T) {
	db := setupTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(), "second up is a no-op")

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestFeatureStore_RoundTrip(t *testing.T) {
	store := NewFeatureStore(setupTestDB(t))
	run, err := store.InsertRun("unit")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)

	want := sampleTable(t)
	require.NoError(t, store.SaveTable(run.RunID, want))

	got, err := store.LoadTable(run.RunID)
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "loaded table differs")
	assert.Equal(t, want.Columns(), got.Columns())

	meta, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "unit", meta.Label)
	assert.Equal(t, 4, meta.Features)
	assert.Equal(t, []string{"mean", "quartiles"}, meta.Columns)
}

func TestFeatureStore_SaveReplaces(t *testing.T) {
	store := NewFeatureStore(setupTestDB(t))
	run, err := store.InsertRun("replace")
	require.NoError(t, err)

	require.NoError(t, store.SaveTable(run.RunID, sampleTable(t)))
	small := features.MustNewTable([]features.Row{{Feature: 9, Frame: 0}})
	require.NoError(t, store.SaveTable(run.RunID, small))

	got, err := store.LoadTable(run.RunID)
	require.NoError(t, err)
	assert.True(t, small.Equal(got))
}

func TestFeatureStore_ListAndDelete(t *testing.T) {
	store := NewFeatureStore(setupTestDB(t))
	a, err := store.InsertRun("a")
	require.NoError(t, err)
	b, err := store.InsertRun("b")
	require.NoError(t, err)
	require.NoError(t, store.SaveTable(a.RunID, sampleTable(t)))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := map[string]bool{runs[0].RunID: true, runs[1].RunID: true}
	assert.True(t, ids[a.RunID] && ids[b.RunID])

	require.NoError(t, store.DeleteRun(a.RunID))
	_, err = store.LoadTable(a.RunID)
	assert.True(t, errors.Is(err, ErrRunNotFound))

	var leftover int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM stat_values`).Scan(&leftover))
	assert.Equal(t, 0, leftover)

	runs, err = store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, b.RunID, runs[0].RunID)
	assert.Equal(t, []string{}, runs[0].Columns)
}

func TestFeatureStore_UnknownRun(t *testing.T) {
	store := NewFeatureStore(setupTestDB(t))
	assert.True(t, errors.Is(store.SaveTable("nope", sampleTable(t)), ErrRunNotFound))
	assert.True(t, errors.Is(store.DeleteRun("nope"), ErrRunNotFound))
	_, err := store.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestOpenDB_Pragmas(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestFeatureStore_ComputedTable(t *testing.T) {
	reg := bulkstats.DefaultRegistry()
	var stats []bulkstats.Statistic
	for _, fn := range []string{"mean", "weighted_mean"} {
		s, err := reg.Build(fn, fn, nil)
		require.NoError(t, err)
		stats = append(stats, s)
	}
	q, err := reg.Build("quartiles", "percentile", bulkstats.Params{"q": []float64{25, 75}})
	require.NoError(t, err)
	stats = append(stats, q)

	table, err := bulkstats.Compute(testutil.Table(), testutil.Mask(), stats[1:2], testutil.Values(), testutil.Weights())
	require.NoError(t, err)
	table, err = bulkstats.Compute(table, testutil.Mask(), []bulkstats.Statistic{stats[0], stats[2]}, testutil.Values())
	require.NoError(t, err)

	store := NewFeatureStore(setupTestDB(t))
	run, err := store.InsertRun("computed")
	require.NoError(t, err)
	require.NoError(t, store.SaveTable(run.RunID, table))
	got, err := store.LoadTable(run.RunID)
	require.NoError(t, err)
	assert.True(t, table.Equal(got))
	assert.Equal(t, []string{"feature", "frame", "time", "weighted_mean", "mean", "quartiles"}, got.Columns())
}
