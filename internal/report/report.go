package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kelcyno/tobac/internal/features"
)

// ErrNoData is returned when a column has no finite values to draw.
var ErrNoData = errors.New("no finite values to plot")

// scalarColumn returns the values of a scalar column.
func scalarColumn(t *features.Table, column string) ([]float64, error) {
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("column %q not found", column)
	}
	if kind, ok := col.Kind(); !ok || kind != features.KindScalar {
		return nil, fmt.Errorf("column %q is not a scalar column", column)
	}
	vals, _ := t.Floats(column)
	return vals, nil
}

// BarChartHTML writes an HTML page with one bar per feature. Missing (NaN)
// values are left as gaps.
func BarChartHTML(w io.Writer, t *features.Table, column string) error {
	vals, err := scalarColumn(t, column)
	if err != nil {
		return err
	}

	x := make([]string, t.Len())
	y := make([]opts.BarData, t.Len())
	for i, v := range vals {
		x[i] = fmt.Sprintf("%d (frame %d)", t.Feature(i), t.Frame(i))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			y[i] = opts.BarData{Value: "-"}
			continue
		}
		y[i] = opts.BarData{Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: column, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: column, Subtitle: fmt.Sprintf("features=%d frames=%d", t.Len(), len(t.Frames()))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "feature", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	bar.SetXAxis(x).AddSeries(column, y)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// HistogramPNG saves a histogram of the finite values of column to path.
// The image format follows the file extension (png, svg, pdf, ...).
func HistogramPNG(path string, t *features.Table, column string, bins int) error {
	vals, err := scalarColumn(t, column)
	if err != nil {
		return err
	}
	finite := make(plotter.Values, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return fmt.Errorf("%w: column %q", ErrNoData, column)
	}
	if bins <= 0 {
		bins = 10
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d features)", column, len(finite))
	p.X.Label.Text = column
	p.Y.Label.Text = "Count"

	hist, err := plotter.NewHist(finite, bins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	p.Add(hist)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram: %w", err)
	}
	return nil
}
