package bulkstats

import "github.com/kelcyno/tobac/internal/config"

// OptionsFromConfig maps the JSON settings onto engine options.
func OptionsFromConfig(cfg *config.BulkStatsConfig) (Options, error) {
	if cfg == nil {
		return DefaultOptions(), nil
	}
	empty, err := ParseEmptyPolicy(cfg.GetEmptySelection())
	if err != nil {
		return Options{}, err
	}
	return Options{
		Workers:      cfg.GetWorkers(),
		TimeDim:      cfg.GetTimeDimension(),
		CollapseDims: cfg.GetCollapseDims(),
		Empty:        empty,
		Default:      cfg.GetEmptyDefault(),
		Verbose:      cfg.GetVerbose(),
	}, nil
}
