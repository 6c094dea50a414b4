// Package bulkstats computes per-region statistics from labeled masks.
//
// Given a feature table, a label mask with a time dimension, and one or more
// data fields, Compute selects the cells of every feature in its frame,
// hands the selected values of each field to caller-supplied reductions, and
// merges one column per statistic back into the table.
//
// Fields are aligned with the mask by dimension name: a field may omit the
// time dimension (it is then shared by every frame), omit spatial dimensions
// (it is repeated across them), or carry extra dimensions (every value along
// them is included in the reduction input, extra axes varying fastest). When
// several fields are passed they are broadcast into one common space so that
// the first field's selection and the second field's selection line up cell
// for cell; this is how weighted reductions receive (values, weights).
//
// Results are a pure function of the inputs: the same table, mask, fields and
// statistics always produce bit-identical columns, whatever the worker count.
// Segmentation relies on this to compute statistics inline that can later be
// recomputed from the saved mask.
//
// Empty selections (a feature whose label does not occur in its frame) are
// passed to the reduction as empty slices by default. See EmptyPolicy for the
// alternatives.
package bulkstats
