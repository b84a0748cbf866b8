// Package filesystem provides the types.FS implementations: the real OS
// filesystem and an afero-backed one used by tests.
package filesystem
