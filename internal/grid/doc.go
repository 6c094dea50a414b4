// Package grid holds the named, coordinate-indexed arrays that carry
// segmentation masks and data fields.
//
// Responsibilities: dimension bookkeeping (names, shape, strides),
// coordinate storage and comparison, and row-major element access.
// Key types: Layout, Coord, Array, Labels, Field.
//
// Dimension rule: arrays are always addressed by dimension name. Nothing in
// this package assumes a positional meaning for an axis; callers that need to
// combine two arrays match their axes by name and then by coordinate value.
package grid
