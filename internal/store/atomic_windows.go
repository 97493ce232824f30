//go:build windows

package store

import "golang.org/x/sys/windows"

// replaceFile atomically replaces dst with src. Plain rename fails on Windows
// when the destination exists, so use MoveFileEx with an explicit overwrite
// and write-through so the replacement is on disk before returning.
func replaceFile(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}
