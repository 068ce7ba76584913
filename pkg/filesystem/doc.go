// Package filesystem provides implementations of the types.FS
// interface: the standard OS filesystem and an afero-backed one used
// mainly for in-memory test filesystems.
package filesystem
