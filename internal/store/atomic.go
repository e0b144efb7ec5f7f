package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"omg/internal/logging"
)

// atomicWrite writes content to a temp file in the destination's directory
// and renames it over dest. Either both steps succeed or the temp file is
// unlinked and the error is wrapped, per spec.md §4.1.
func atomicWrite(dest string, content []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("Atomic write failed: mkdir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s", uuid.NewString()))
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		_ = os.Remove(tmp)
		logging.Get(logging.CategoryStore).Error("atomic write: write tmp failed: %v", err)
		return fmt.Errorf("Atomic write failed: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		logging.Get(logging.CategoryStore).Error("atomic write: rename failed: %v", err)
		return fmt.Errorf("Atomic write failed: %w", err)
	}
	return nil
}
