// Command bulkstats computes per-feature statistics over labeled regions of
// a gridded dataset and writes them as CSV, to a sqlite database, or as
// charts.
//
// Usage:
//
//	bulkstats -dataset storm.json -stats stats.yaml -csv out.csv
//	bulkstats -dataset storm.json -segment -check -db runs.db -label storm
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kelcyno/tobac/internal/bulkstats"
	"github.com/kelcyno/tobac/internal/config"
	"github.com/kelcyno/tobac/internal/dataset"
	"github.com/kelcyno/tobac/internal/db"
	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
	"github.com/kelcyno/tobac/internal/monitoring"
	"github.com/kelcyno/tobac/internal/report"
	"github.com/kelcyno/tobac/internal/segmentation"
	"github.com/kelcyno/tobac/internal/version"
)

// defaultStatistics are computed when no -stats file is given.
var defaultStatistics = []string{"mean", "max", "count"}

type options struct {
	dataset string
	stats   string
	config  string
	segment bool
	check   bool
	csv     string
	db      string
	label   string
	chart   string
	hist    string
	column  string
	bins    int
	workers int
	list    bool
	verbose bool
	version bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("bulkstats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.dataset, "dataset", "", "Dataset JSON file with mask, fields and features")
	fs.StringVar(&o.stats, "stats", "", "Statistics YAML file (defaults to mean, max and count)")
	fs.StringVar(&o.config, "config", "", "Config JSON file (see config/bulkstats.defaults.json)")
	fs.BoolVar(&o.segment, "segment", false, "Build the mask by segmenting the first field, computing statistics inline")
	fs.BoolVar(&o.check, "check", false, "Recompute the statistics from the mask and fail unless they match bit for bit")
	fs.StringVar(&o.csv, "csv", "", "Write the result table as CSV to this file ('-' for stdout)")
	fs.StringVar(&o.db, "db", "", "Store the result table in this sqlite database")
	fs.StringVar(&o.label, "label", "", "Run label used with -db (defaults to the dataset path)")
	fs.StringVar(&o.chart, "chart", "", "Write an HTML bar chart of -column to this file")
	fs.StringVar(&o.hist, "hist", "", "Write a histogram image of -column to this file")
	fs.StringVar(&o.column, "column", "", "Column for -chart and -hist (defaults to the first statistic)")
	fs.IntVar(&o.bins, "bins", 10, "Histogram bins")
	fs.IntVar(&o.workers, "workers", -1, "Worker count override (0 uses GOMAXPROCS)")
	fs.BoolVar(&o.list, "list", false, "List the built-in reductions and exit")
	fs.BoolVar(&o.verbose, "verbose", false, "Log timing and empty-selection summaries")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !o.list && !o.version && o.dataset == "" {
		return nil, errors.New("-dataset is required")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("bulkstats: %v", err)
	}
	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("bulkstats: %v", err)
	}
}

func run(o *options, stdout io.Writer) error {
	if o.version {
		fmt.Fprintf(stdout, "bulkstats %s\n", version.String())
		return nil
	}
	reg := bulkstats.DefaultRegistry()
	if o.list {
		for _, d := range reg.List() {
			fmt.Fprintf(stdout, "%-14s fields=%d  %s\n", d.Name, d.Arity, d.Description)
		}
		return nil
	}

	cfg := config.EmptyConfig()
	if o.config != "" {
		loaded, err := config.LoadConfig(o.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.verbose {
		v := true
		cfg.Verbose = &v
	}
	if o.workers >= 0 {
		w := o.workers
		cfg.Workers = &w
	}

	ds, err := dataset.Load(o.dataset)
	if err != nil {
		return err
	}
	table, err := ds.Table()
	if err != nil {
		return err
	}

	stats, err := loadStatistics(o.stats, reg)
	if err != nil {
		return err
	}

	opts, err := bulkstats.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	engine := bulkstats.NewEngine(opts)

	var (
		mask   *grid.Labels
		out    *features.Table
		fields = ds.Fields
	)
	if o.segment {
		segCfg, err := segmentation.ConfigFromTuning(cfg, stats)
		if err != nil {
			return err
		}
		segCfg.Engine = engine
		mask, out, err = segmentation.Segment(table, ds.Fields[0], segCfg)
		if err != nil {
			return fmt.Errorf("segmentation: %w", err)
		}
		fields = ds.Fields[:1]
	} else {
		if ds.Mask == nil {
			return errors.New("dataset has no mask; use -segment to build one")
		}
		mask = ds.Mask
		out, err = engine.Compute(table, mask, stats, fields...)
		if err != nil {
			return err
		}
	}

	if o.check {
		again, err := engine.Compute(out, mask, stats, fields...)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		if !again.Equal(out) {
			return errors.New("check: recomputed statistics differ from the first pass")
		}
		monitoring.Logf("check passed: %d statistics for %d features", len(stats), out.Len())
	}

	return writeOutputs(o, out, stats, stdout)
}

func loadStatistics(path string, reg *bulkstats.Registry) ([]bulkstats.Statistic, error) {
	if path != "" {
		return bulkstats.LoadStatistics(path, reg)
	}
	stats := make([]bulkstats.Statistic, 0, len(defaultStatistics))
	for _, name := range defaultStatistics {
		s, err := reg.Build(name, name, nil)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func writeOutputs(o *options, out *features.Table, stats []bulkstats.Statistic, stdout io.Writer) error {
	if o.csv != "" {
		if err := writeCSV(o.csv, out, stdout); err != nil {
			return err
		}
	}

	if o.db != "" {
		database, err := db.NewDB(o.db)
		if err != nil {
			return err
		}
		defer database.Close()
		store := db.NewFeatureStore(database)
		label := o.label
		if label == "" {
			label = o.dataset
		}
		run, err := store.InsertRun(label)
		if err != nil {
			return err
		}
		if err := store.SaveTable(run.RunID, out); err != nil {
			return err
		}
		monitoring.Logf("stored %d features as run %s", out.Len(), run.RunID)
	}

	column := o.column
	if column == "" && len(stats) > 0 {
		column = stats[0].Name
	}
	if o.chart != "" {
		f, err := os.Create(o.chart)
		if err != nil {
			return fmt.Errorf("create chart: %w", err)
		}
		if err := report.BarChartHTML(f, out, column); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if o.hist != "" {
		if err := report.HistogramPNG(o.hist, out, column, o.bins); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, out *features.Table, stdout io.Writer) error {
	if path == "-" {
		return out.WriteCSV(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := out.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
