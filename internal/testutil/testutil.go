// Package testutil provides shared fixtures for tests: a two-frame 5x5
// label mask with four features, matching value and weight fields, and the
// feature table that goes with them.
package testutil

import (
	"time"

	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
)

var (
	T0 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	T1 = time.Date(2000, 1, 1, 0, 5, 0, 0, time.UTC)
)

// LabelData is the row-major (time, y, x) mask: features 1 and 2 in frame
// 0, features 3 and 4 in frame 1.
var LabelData = []int64{
	0, 0, 0, 0, 0,
	0, 1, 0, 2, 0,
	0, 1, 0, 2, 0,
	0, 1, 0, 0, 0,
	0, 0, 0, 0, 0,

	0, 0, 0, 0, 0,
	0, 3, 0, 0, 0,
	0, 3, 0, 4, 0,
	0, 3, 0, 4, 0,
	0, 0, 0, 0, 0,
}

// Coords returns time, y and x coordinates for the fixtures.
func Coords() map[string]grid.Coord {
	return map[string]grid.Coord{
		"time": grid.TimeCoord(T0, T1),
		"y":    grid.Range(5),
		"x":    grid.Range(5),
	}
}

// Mask returns a fresh copy of the fixture mask.
func Mask() *grid.Labels {
	return grid.MustNew([]string{"time", "y", "x"}, []int{2, 5, 5}, LabelData, Coords())
}

// Table returns the feature table for Mask.
func Table() *features.Table {
	return features.MustNewTable([]features.Row{
		{Feature: 1, Frame: 0, Time: T0},
		{Feature: 2, Frame: 0, Time: T0},
		{Feature: 3, Frame: 1, Time: T1},
		{Feature: 4, Frame: 1, Time: T1},
	})
}

// Values returns a field whose per-feature means are 2, 2, 3 and 2.5.
func Values() *grid.Field {
	return grid.MustNew([]string{"time", "y", "x"}, []int{2, 5, 5}, []float64{
		0, 0, 0, 0, 0,
		0, 1, 0, 2, 0,
		0, 2, 0, 2, 0,
		0, 3, 0, 0, 0,
		0, 0, 0, 0, 0,

		0, 0, 0, 0, 0,
		0, 2, 0, 0, 0,
		0, 3, 0, 3, 0,
		0, 4, 0, 2, 0,
		0, 0, 0, 0, 0,
	}, Coords())
}

// Weights returns a weight field for Values; the weighted means are 3, 2,
// 2 and 2.5.
func Weights() *grid.Field {
	return grid.MustNew([]string{"time", "y", "x"}, []int{2, 5, 5}, []float64{
		0, 0, 0, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 1, 0,
		0, 1, 0, 0, 0,
		0, 0, 0, 0, 0,

		0, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 0,
	}, Coords())
}
