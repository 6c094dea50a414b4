// Package report renders statistic columns of a feature table: an HTML bar
// chart with one bar per feature, and a PNG histogram of a column's values.
package report
