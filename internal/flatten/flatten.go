// Package flatten moves files out of nested folders into their root folder.
package flatten

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Stats counts what Flatten did.
type Stats struct {
	Moved       int
	Renamed     int
	Failed      int
	RemovedDirs int
}

// Flatten moves every file below root's subdirectories into root. A name
// already taken in root gets a _1, _2, ... suffix before its extension.
// Emptied directories are removed bottom-up. Failures to move a single file
// are logged and counted; only a missing root is an error.
func Flatten(fs afero.Fs, root string) (Stats, error) {
	var stats Stats

	info, err := fs.Stat(root)
	if err != nil {
		return stats, fmt.Errorf("flatten %s: %w", root, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("flatten %s: not a directory", root)
	}

	var files, dirs []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if filepath.Dir(path) != filepath.Clean(root) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}

	for _, src := range files {
		dst, err := freeName(fs, filepath.Join(root, filepath.Base(src)))
		if err != nil {
			stats.Failed++
			slog.Warn("flatten: cannot pick target name", "file", src, "error", err)
			continue
		}
		if filepath.Base(dst) != filepath.Base(src) {
			stats.Renamed++
		}
		if err := fs.Rename(src, dst); err != nil {
			stats.Failed++
			slog.Warn("flatten: move failed", "file", src, "error", err)
			continue
		}
		stats.Moved++
		slog.Debug("flatten: moved", "from", src, "to", dst)
	}

	// Deepest first so parents are empty by the time they are reached.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})
	for _, d := range dirs {
		entries, err := afero.ReadDir(fs, d)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := fs.Remove(d); err != nil {
			slog.Debug("flatten: cannot remove dir", "dir", d, "error", err)
			continue
		}
		stats.RemovedDirs++
	}

	return stats, nil
}

func freeName(fs afero.Fs, path string) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return path, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
