package duckdb

import (
	"fmt"
	"io"
	"os"
)

// writeFile copies reader into path via a temporary sibling so a partially
// downloaded export is never visible under its final name.
func writeFile(path string, reader io.Reader) (int64, error) {
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	written, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return 0, copyErr
		}
		return 0, closeErr
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("rename %q: %w", tmp, err)
	}
	return written, nil
}
