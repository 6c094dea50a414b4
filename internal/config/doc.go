// Package config loads the JSON settings shared by the statistics engine,
// the segmentation step and the bulkstats command.
//
// Values live in pointer fields so that an omitted key can be told apart
// from a zero value; the Get* methods resolve omitted keys to defaults.
// The canonical defaults are kept in config/bulkstats.defaults.json.
package config
