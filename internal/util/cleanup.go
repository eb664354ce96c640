package util

import (
	"os"
	"path/filepath"
	"strings"
)

// PartialSuffix marks a file that is still being written.
const PartialSuffix = ".part"

// RemovePartials deletes unfinished downloads left in dir and returns how many
// were removed.
func RemovePartials(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, PartialSuffix) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}

	return removed
}
