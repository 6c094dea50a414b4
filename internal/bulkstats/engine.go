package bulkstats

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
	"github.com/kelcyno/tobac/internal/monitoring"
)

// DefaultTimeDim is the name of the mask's time dimension unless configured.
const DefaultTimeDim = "time"

// ErrIncompatibleResult is wrapped in a StatisticError when a reduction
// returns a value that cannot share a column with the other rows.
var ErrIncompatibleResult = errors.New("result kind differs from other rows")

// EmptyPolicy decides what happens when a feature's label does not occur in
// its frame.
type EmptyPolicy int

const (
	// EmptyPassThrough calls the reduction with empty selections and stores
	// whatever it returns. A reduction that rejects empty input fails the
	// whole computation.
	EmptyPassThrough EmptyPolicy = iota
	// EmptyError fails with a StatisticError wrapping ErrEmptySelection.
	EmptyError
	// EmptyDefault skips the reduction and stores Options.Default.
	EmptyDefault
)

// String implements fmt.Stringer.
func (p EmptyPolicy) String() string {
	switch p {
	case EmptyPassThrough:
		return "pass"
	case EmptyError:
		return "error"
	case EmptyDefault:
		return "default"
	default:
		return fmt.Sprintf("EmptyPolicy(%d)", int(p))
	}
}

// ParseEmptyPolicy parses "pass", "error", or "default".
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch s {
	case "", "pass":
		return EmptyPassThrough, nil
	case "error":
		return EmptyError, nil
	case "default":
		return EmptyDefault, nil
	}
	return 0, fmt.Errorf("unknown empty selection policy %q (want pass, error or default)", s)
}

// Options configures an Engine.
type Options struct {
	Workers      int      // frames processed concurrently; <= 0 uses GOMAXPROCS
	TimeDim      string   // name of the mask's time dimension
	CollapseDims []string // mask dims projected away before selection
	Empty        EmptyPolicy
	Default      *float64 // stored under EmptyDefault; nil means NaN
	Verbose      bool
}

// DefaultOptions returns the options used by the package-level Compute.
func DefaultOptions() Options {
	return Options{TimeDim: DefaultTimeDim}
}

// Engine computes statistics. It holds no state between calls and is safe
// for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.TimeDim == "" {
		opts.TimeDim = DefaultTimeDim
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	opts.CollapseDims = append([]string(nil), opts.CollapseDims...)
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	o := e.opts
	o.CollapseDims = append([]string(nil), o.CollapseDims...)
	return o
}

// Compute is Engine.Compute with DefaultOptions.
func Compute(table *features.Table, mask *grid.Labels, stats []Statistic, fields ...*grid.Field) (*features.Table, error) {
	return NewEngine(DefaultOptions()).Compute(table, mask, stats, fields...)
}

// Compute returns a copy of table with one column per statistic, in the
// order given. fields[0] is the value field; further fields (typically a
// weight field) are passed to each reduction as additional selections.
// Existing columns with the same names are replaced.
func (e *Engine) Compute(table *features.Table, mask *grid.Labels, stats []Statistic, fields ...*grid.Field) (*features.Table, error) {
	start := time.Now()
	if table == nil || mask == nil {
		return nil, errors.New("bulkstats: table and mask are required")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	invokers, err := resolve(stats)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	for i, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("%w: field %d is nil", ErrNoFields, i)
		}
	}

	frames := table.Frames()
	p, err := newPlan(mask, fields, frames, e.opts.TimeDim, e.opts.CollapseDims)
	if err != nil {
		return nil, err
	}

	rowsByFrame := make(map[int][]int, len(frames))
	for r := 0; r < table.Len(); r++ {
		f := table.Frame(r)
		rowsByFrame[f] = append(rowsByFrame[f], r)
	}

	results := make([][]features.Value, len(invokers))
	for i := range results {
		results[i] = make([]features.Value, table.Len())
	}

	// Rows skipped under EmptyDefault are filled once every column's kind is
	// known, so vector statistics get a vector default.
	skipped := make([]bool, table.Len())

	// Errors are kept per frame and the one at the lowest row is reported,
	// so the outcome does not depend on scheduling. Frames whose first row
	// comes after a known failure are skipped.
	frameErrs := make([]error, len(frames))
	failRows := make([]int, len(frames))
	var firstFailed atomic.Int64
	firstFailed.Store(math.MaxInt64)
	var empties atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for fi, frame := range frames {
		fi, frame := fi, frame
		g.Go(func() error {
			rows := rowsByFrame[frame]
			if firstFailed.Load() < int64(rows[0]) {
				return nil
			}
			n, row, err := e.computeFrame(p, table, frame, rows, invokers, results, skipped)
			empties.Add(int64(n))
			if err != nil {
				frameErrs[fi], failRows[fi] = err, row
				for {
					cur := firstFailed.Load()
					if int64(row) >= cur || firstFailed.CompareAndSwap(cur, int64(row)) {
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	var firstErr error
	firstRow := math.MaxInt
	for fi, err := range frameErrs {
		if err != nil && failRows[fi] < firstRow {
			firstErr, firstRow = err, failRows[fi]
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	if e.opts.Empty == EmptyDefault {
		fill := math.NaN()
		if e.opts.Default != nil {
			fill = *e.opts.Default
		}
		for i := range results {
			fillSkipped(results[i], skipped, fill)
		}
	}

	cols := make([]features.Column, len(invokers))
	for i, inv := range invokers {
		col := features.Column{Name: inv.name, Values: results[i]}
		if _, ok := col.Kind(); !ok {
			want := col.Values[0].Kind()
			for r, v := range col.Values {
				if v.Kind() != want {
					return nil, &StatisticError{
						Statistic: inv.name,
						Feature:   table.Feature(r),
						Err:       fmt.Errorf("%w: got %s, want %s", ErrIncompatibleResult, v.Kind(), want),
					}
				}
			}
		}
		cols[i] = col
	}

	out, err := table.Merge(cols...)
	if err != nil {
		return nil, err
	}
	if e.opts.Verbose {
		if n := empties.Load(); n > 0 {
			monitoring.Logf("bulkstats: %d of %d features have no cells in their frame (policy=%s)", n, table.Len(), e.opts.Empty)
		}
		monitoring.Logf("bulkstats: %d statistics over %d features in %d frames took %s",
			len(invokers), table.Len(), len(frames), time.Since(start))
	}
	return out, nil
}

// computeFrame fills the result slots of every row in one frame. It returns
// the number of empty selections seen and, on failure, the failing row.
// Rows left for the EmptyDefault fill are marked in skipped.
func (e *Engine) computeFrame(p *plan, table *features.Table, frame int, rows []int, invokers []invoker, results [][]features.Value, skipped []bool) (int, int, error) {
	regions := p.indexFrame(frame)
	empties := 0
	for _, r := range rows {
		id := table.Feature(r)
		cells := regions.Select(id)
		if len(cells) == 0 {
			empties++
			switch e.opts.Empty {
			case EmptyError:
				return empties, r, &StatisticError{Statistic: invokers[0].name, Feature: id, Err: ErrEmptySelection}
			case EmptyDefault:
				skipped[r] = true
				continue
			}
		}

		args := make([][]float64, len(p.fields))
		for k := range p.fields {
			args[k] = p.fields[k].gather(frame, cells)
		}
		for i, inv := range invokers {
			v, err := invoke(inv, args)
			if err != nil {
				return empties, r, &StatisticError{Statistic: inv.name, Feature: id, Err: err}
			}
			results[i][r] = v
		}
	}
	return empties, -1, nil
}

// fillSkipped stores fill in the skipped rows of one column. When the
// computed rows hold vectors, the fill is a vector of the first computed
// row's length; otherwise it is a scalar.
func fillSkipped(col []features.Value, skipped []bool, fill float64) {
	v := features.Scalar(fill)
	for r, cell := range col {
		if skipped[r] {
			continue
		}
		if cell.Kind() == features.KindVector {
			vec := make([]float64, cell.Len())
			for k := range vec {
				vec[k] = fill
			}
			v = features.Vector(vec)
		}
		break
	}
	for r := range col {
		if skipped[r] {
			col[r] = v
		}
	}
}

// invoke calls a reduction, turning a panic into an error so that one bad
// reduction cannot take down the worker pool.
func invoke(inv invoker, args [][]float64) (v features.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return inv.call(args)
}
