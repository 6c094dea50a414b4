package bulkstats

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StatisticSpec is one entry of a statistics file:
//
//	statistics:
//	  - name: max_intensity
//	    func: max
//	  - name: p95
//	    func: percentile
//	    params: {q: 95}
type StatisticSpec struct {
	Name   string         `yaml:"name"`
	Func   string         `yaml:"func"`
	Params map[string]any `yaml:"params,omitempty"`
}

type statisticsFile struct {
	Statistics []StatisticSpec `yaml:"statistics"`
}

// ParseStatistics decodes a statistics file and resolves every entry
// against reg. Unknown keys are rejected.
func ParseStatistics(data []byte, reg *Registry) ([]Statistic, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f statisticsFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse statistics: %w", err)
	}
	if len(f.Statistics) == 0 {
		return nil, fmt.Errorf("%w: statistics file lists no statistics", ErrInvalidStatistic)
	}
	out := make([]Statistic, 0, len(f.Statistics))
	for i, spec := range f.Statistics {
		if spec.Func == "" {
			return nil, fmt.Errorf("%w: entry %d has no func", ErrInvalidStatistic, i)
		}
		var params Params
		if spec.Params != nil {
			params = Params(spec.Params)
		}
		s, err := reg.Build(spec.Name, spec.Func, params)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadStatistics reads and parses a statistics file from disk.
func LoadStatistics(path string, reg *Registry) ([]Statistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics file %s: %w", path, err)
	}
	return ParseStatistics(data, reg)
}
