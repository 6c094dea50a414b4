// Package features holds the feature table produced by detection and
// consumed by segmentation, statistics, and tracking.
//
// Responsibilities: the required feature/frame/time columns, ordered
// statistic columns of scalar or vector cells, bit-exact comparison, and
// merging computed columns back into a table.
// Key types: Table, Row, Column, Value.
//
// Tables are treated as values: every operation that adds or replaces
// columns returns a new Table and leaves the receiver untouched.
package features
