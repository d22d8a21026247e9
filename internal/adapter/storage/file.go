package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// saveFile fills localPath through a sibling .part file that is renamed on
// success and removed on failure, so a failed download leaves nothing behind.
func saveFile(localPath string, fill func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	partPath := localPath + ".part"
	f, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(partPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(partPath, localPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseRemoteTime parses a backend timestamp. Values without a zone are UTC,
// never local time. The result is always in UTC.
func parseRemoteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
