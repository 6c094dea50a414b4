package segmentation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kelcyno/tobac/internal/bulkstats"
	"github.com/kelcyno/tobac/internal/config"
	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
	"github.com/kelcyno/tobac/internal/monitoring"
)

// ColumnCells is appended to the feature table with the size of each region.
const ColumnCells = "ncells"

// ErrSeedColumn is returned when the table lacks a seed position column.
var ErrSeedColumn = errors.New("missing seed position column")

// Target selects which side of the threshold belongs to a region.
type Target int

const (
	TargetMaximum Target = iota // values >= threshold
	TargetMinimum               // values <= threshold
)

// ParseTarget parses "maximum" or "minimum".
func ParseTarget(s string) (Target, error) {
	switch s {
	case "", "maximum":
		return TargetMaximum, nil
	case "minimum":
		return TargetMinimum, nil
	}
	return 0, fmt.Errorf("unknown segmentation target %q (want maximum or minimum)", s)
}

func (t Target) String() string {
	if t == TargetMinimum {
		return "minimum"
	}
	return "maximum"
}

// Config controls Segment.
type Config struct {
	Threshold float64
	Target    Target
	// SeedColumns names the table columns holding each feature's position,
	// one per spatial dim of the field in field order. Defaults to
	// hdim_1, hdim_2 for 2D fields and vdim, hdim_1, hdim_2 for 3D fields.
	SeedColumns []string
	// Statistics are computed for every region before Segment returns.
	Statistics []bulkstats.Statistic
	// Engine computes the statistics; nil uses bulkstats defaults.
	Engine *bulkstats.Engine
}

// ConfigFromTuning builds a Config from the JSON settings.
func ConfigFromTuning(cfg *config.BulkStatsConfig, stats []bulkstats.Statistic) (Config, error) {
	target, err := ParseTarget(cfg.GetSegmentationTarget())
	if err != nil {
		return Config{}, err
	}
	opts, err := bulkstats.OptionsFromConfig(cfg)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Threshold:  cfg.GetSegmentationThreshold(),
		Target:     target,
		Statistics: stats,
		Engine:     bulkstats.NewEngine(opts),
	}, nil
}

func (c Config) passes(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if c.Target == TargetMinimum {
		return v <= c.Threshold
	}
	return v >= c.Threshold
}

func defaultSeedColumns(n int) []string {
	switch n {
	case 1:
		return []string{"hdim_1"}
	case 2:
		return []string{"hdim_1", "hdim_2"}
	case 3:
		return []string{"vdim", "hdim_1", "hdim_2"}
	}
	return nil
}

// Segment labels the region of every feature in table on field and returns
// the mask together with a copy of table extended by ncells and by one
// column per configured statistic.
func Segment(table *features.Table, field *grid.Field, cfg Config) (*grid.Labels, *features.Table, error) {
	start := time.Now()
	if table == nil || field == nil {
		return nil, nil, errors.New("segmentation: table and field are required")
	}
	if err := table.Validate(); err != nil {
		return nil, nil, err
	}
	eng := cfg.Engine
	if eng == nil {
		eng = bulkstats.NewEngine(bulkstats.DefaultOptions())
	}
	timeDim := eng.Options().TimeDim
	if !field.HasDim(timeDim) {
		return nil, nil, fmt.Errorf("segmentation: field has no %q dimension", timeDim)
	}

	var dims []string
	var shape, strides []int
	for _, d := range field.Dims() {
		if d == timeDim {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, field.DimSize(d))
		strides = append(strides, field.DimStride(d))
	}

	seedCols := cfg.SeedColumns
	if seedCols == nil {
		seedCols = defaultSeedColumns(len(dims))
	}
	if len(seedCols) != len(dims) {
		return nil, nil, fmt.Errorf("segmentation: %d seed columns for %d spatial dims", len(seedCols), len(dims))
	}
	seeds := make([][]float64, len(seedCols))
	for i, name := range seedCols {
		vals, ok := table.Floats(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrSeedColumn, name)
		}
		seeds[i] = vals
	}

	nFrames := field.DimSize(timeDim)
	for r := 0; r < table.Len(); r++ {
		if table.Frame(r) >= nFrames {
			return nil, nil, fmt.Errorf("segmentation: feature %d in frame %d, field has %d frames",
				table.Feature(r), table.Frame(r), nFrames)
		}
	}

	mask := grid.Zeros[int64](field.Layout)
	g := newGrid(shape, grid.Offsets(shape, strides))
	values := field.Data()
	labels := mask.Data()
	timeStride := field.DimStride(timeDim)

	ncells := make([]float64, table.Len())
	for r := 0; r < table.Len(); r++ {
		id := table.Feature(r)
		if id <= 0 {
			return nil, nil, fmt.Errorf("segmentation: feature id %d must be positive", id)
		}
		base := table.Frame(r) * timeStride
		pos := make([]int, len(dims))
		inside := true
		for i := range dims {
			p := math.Round(seeds[i][r])
			if math.IsNaN(p) || p < 0 || int(p) >= shape[i] {
				inside = false
				break
			}
			pos[i] = int(p)
		}
		if !inside {
			continue
		}
		n := g.fill(g.index(pos), func(cell int) bool {
			off := base + g.offsets[cell]
			if labels[off] != 0 || !cfg.passes(values[off]) {
				return false
			}
			labels[off] = id
			return true
		})
		ncells[r] = float64(n)
	}

	out, err := table.Merge(features.FloatColumn(ColumnCells, ncells))
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Statistics) > 0 {
		out, err = eng.Compute(out, mask, cfg.Statistics, field)
		if err != nil {
			return nil, nil, err
		}
	}
	if eng.Options().Verbose {
		monitoring.Logf("segmentation: %d features over %d frames (threshold=%g target=%s) took %s",
			table.Len(), len(table.Frames()), cfg.Threshold, cfg.Target, time.Since(start))
	}
	return mask, out, nil
}
