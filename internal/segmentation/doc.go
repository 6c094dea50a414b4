// Package segmentation grows labeled regions around detected features and
// computes bulk statistics for them in the same pass.
//
// Each feature seeds a flood fill over face-connected cells whose field
// value passes the threshold. Regions never overlap: when two seeds reach
// the same cell, the feature listed first in the table keeps it. The
// returned mask and table are consistent with bulkstats.Compute, so
// recomputing the statistics later gives bit-identical columns.
package segmentation
