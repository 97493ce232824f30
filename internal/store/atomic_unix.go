//go:build !windows

package store

import "os"

// replaceFile atomically replaces dst with src. POSIX rename overwrites an
// existing destination in a single step.
func replaceFile(src, dst string) error {
	return os.Rename(src, dst)
}
