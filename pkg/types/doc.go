// Package types holds the small shared value types used across the
// engine: resolved option values and the filesystem abstraction.
// Keeping them here avoids import cycles between schema, rules and
// render.
package types
