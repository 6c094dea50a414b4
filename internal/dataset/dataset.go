// Package dataset reads and writes the JSON bundle consumed by the bulkstats
// command: a label mask, one or more data fields and the feature rows.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelcyno/tobac/internal/features"
	"github.com/kelcyno/tobac/internal/grid"
)

// maxFileSize bounds the size of a dataset file.
const maxFileSize = 512 * 1024 * 1024

// Dataset is the on-disk bundle. Mask may be nil when the mask is to be
// produced by segmentation.
type Dataset struct {
	Mask     *grid.Labels   `json:"mask,omitempty"`
	Fields   []*grid.Field  `json:"fields"`
	Features []features.Row `json:"features"`
}

// Decode reads a dataset from r and validates its structure.
func Decode(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var d Dataset
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Load reads a dataset from a .json file.
func Load(path string) (*Dataset, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("dataset file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("dataset too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes d to path as indented JSON.
func Save(path string, d *Dataset) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

// Validate checks that the bundle has at least one field and no nil entries.
func (d *Dataset) Validate() error {
	if len(d.Fields) == 0 {
		return errors.New("dataset has no fields")
	}
	for i, f := range d.Fields {
		if f == nil {
			return fmt.Errorf("dataset field %d is null", i)
		}
	}
	return nil
}

// Table builds the feature table from the feature rows.
func (d *Dataset) Table() (*features.Table, error) {
	return features.NewTable(d.Features)
}
