package store

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// WriteFileAtomic writes data to path so that a concurrent reader sees either
// the old content or the new content, never a partial write. The data goes to
// a uniquely named sibling temp file first, then replaces the destination. On
// any failure the temp file is removed and the destination is untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.tmp.%s", path, uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed_to_create_temp_file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed_to_write_temp_file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed_to_sync_temp_file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed_to_close_temp_file: %w", err)
	}

	if err := replaceFile(tmp, path); err != nil {
		return fmt.Errorf("failed_to_replace_file: %w", err)
	}
	success = true
	return nil
}
