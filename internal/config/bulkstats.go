package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/bulkstats.defaults.json"

// BulkStatsConfig holds the engine and segmentation settings. Every field
// is optional; the Get* methods supply defaults for omitted fields, so
// partial configs are safe.
type BulkStatsConfig struct {
	// Engine params
	Workers        *int     `json:"workers,omitempty"` // <= 0 uses GOMAXPROCS
	TimeDimension  *string  `json:"time_dimension,omitempty"`
	EmptySelection *string  `json:"empty_selection,omitempty"` // "pass", "error" or "default"
	EmptyDefault   *float64 `json:"empty_default,omitempty"`
	CollapseDims   []string `json:"collapse_dims,omitempty"`
	Verbose        *bool    `json:"verbose,omitempty"`

	// Segmentation params
	SegmentationThreshold *float64 `json:"segmentation_threshold,omitempty"`
	SegmentationTarget    *string  `json:"segmentation_target,omitempty"` // "maximum" or "minimum"
}

// EmptyConfig returns a config with every field unset.
func EmptyConfig() *BulkStatsConfig {
	return &BulkStatsConfig{}
}

// LoadConfig loads a BulkStatsConfig from a JSON file. The file must have a
// .json extension and be at most 1MB. Unknown keys are rejected.
func LoadConfig(path string) (*BulkStatsConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptyConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and tools run from inside the repository.
func MustLoadDefaultConfig() *BulkStatsConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the set values are usable.
func (c *BulkStatsConfig) Validate() error {
	if c.TimeDimension != nil && *c.TimeDimension == "" {
		return fmt.Errorf("time_dimension must not be empty")
	}
	if c.EmptySelection != nil {
		switch *c.EmptySelection {
		case "pass", "error", "default":
		default:
			return fmt.Errorf("empty_selection must be pass, error or default, got %q", *c.EmptySelection)
		}
	}
	seen := make(map[string]bool, len(c.CollapseDims))
	for _, d := range c.CollapseDims {
		if d == "" {
			return fmt.Errorf("collapse_dims contains an empty name")
		}
		if d == c.GetTimeDimension() {
			return fmt.Errorf("collapse_dims cannot include the time dimension %q", d)
		}
		if seen[d] {
			return fmt.Errorf("collapse_dims lists %q twice", d)
		}
		seen[d] = true
	}
	if c.SegmentationTarget != nil {
		switch *c.SegmentationTarget {
		case "maximum", "minimum":
		default:
			return fmt.Errorf("segmentation_target must be maximum or minimum, got %q", *c.SegmentationTarget)
		}
	}
	return nil
}

// GetWorkers returns workers or 0 (use GOMAXPROCS).
func (c *BulkStatsConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetTimeDimension returns time_dimension or "time".
func (c *BulkStatsConfig) GetTimeDimension() string {
	if c.TimeDimension == nil || *c.TimeDimension == "" {
		return "time"
	}
	return *c.TimeDimension
}

// GetEmptySelection returns empty_selection or "pass".
func (c *BulkStatsConfig) GetEmptySelection() string {
	if c.EmptySelection == nil {
		return "pass"
	}
	return *c.EmptySelection
}

// GetEmptyDefault returns empty_default, or nil when unset (NaN fill).
func (c *BulkStatsConfig) GetEmptyDefault() *float64 {
	if c.EmptyDefault == nil {
		return nil
	}
	v := *c.EmptyDefault
	return &v
}

func (c *BulkStatsConfig) GetCollapseDims() []string {
	return append([]string(nil), c.CollapseDims...)
}

func (c *BulkStatsConfig) GetVerbose() bool {
	return c.Verbose != nil && *c.Verbose
}

// GetSegmentationThreshold returns segmentation_threshold or 0.
func (c *BulkStatsConfig) GetSegmentationThreshold() float64 {
	if c.SegmentationThreshold == nil {
		return 0
	}
	return *c.SegmentationThreshold
}

// GetSegmentationTarget returns segmentation_target or "maximum".
func (c *BulkStatsConfig) GetSegmentationTarget() string {
	if c.SegmentationTarget == nil {
		return "maximum"
	}
	return *c.SegmentationTarget
}
