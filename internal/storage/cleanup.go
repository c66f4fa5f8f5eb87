package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CleanupDir removes everything under dir and then dir itself: files first,
// then directories deepest-first. It is best-effort and never fails; anything
// that cannot be removed is left in place.
func CleanupDir(dir string) {
	if dir == "" {
		return
	}

	var dirs []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		_ = os.Remove(p)
		return nil
	})

	// Longer paths are nested deeper; remove them before their parents.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		_ = os.Remove(d)
	}
}
