package bulkstats

import (
	"errors"
	"fmt"

	"github.com/kelcyno/tobac/internal/features"
)

var (
	// ErrAlignment matches any *AlignmentError.
	ErrAlignment = errors.New("alignment error")
	// ErrStatistic matches any *StatisticError.
	ErrStatistic = errors.New("statistic error")

	ErrNoFields         = errors.New("at least one field is required")
	ErrInvalidStatistic = errors.New("invalid statistic")
	ErrArity            = errors.New("reduction does not accept this number of fields")
	ErrEmptySelection   = errors.New("empty selection")
	ErrEmptyInput       = errors.New("reduction of empty input")
	ErrParam            = errors.New("invalid statistic parameter")
)

// ShapeError reports a row-count mismatch while merging results.
type ShapeError = features.ShapeError

// AlignmentError reports a field that cannot be reconciled with the mask.
// It is raised before any per-row work starts.
type AlignmentError struct {
	Field  int // position of the field in the Compute call, -1 for the mask
	Dim    string
	Reason string
}

func (e *AlignmentError) Error() string {
	subject := "mask"
	if e.Field >= 0 {
		subject = fmt.Sprintf("field %d", e.Field)
	}
	if e.Dim == "" {
		return fmt.Sprintf("alignment error: %s: %s", subject, e.Reason)
	}
	return fmt.Sprintf("alignment error: %s, dimension %q: %s", subject, e.Dim, e.Reason)
}

// Is lets errors.Is(err, ErrAlignment) match.
func (e *AlignmentError) Is(target error) bool { return target == ErrAlignment }

func alignErr(field int, dim, format string, args ...any) error {
	return &AlignmentError{Field: field, Dim: dim, Reason: fmt.Sprintf(format, args...)}
}

// StatisticError reports a reduction that failed or returned a value that
// cannot be stored in its column.
type StatisticError struct {
	Statistic string
	Feature   int64
	Err       error
}

func (e *StatisticError) Error() string {
	return fmt.Sprintf("statistic %q failed for feature %d: %v", e.Statistic, e.Feature, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StatisticError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStatistic) match.
func (e *StatisticError) Is(target error) bool { return target == ErrStatistic }
