// Package discovery resolves the log files named by a command-line input and
// where their reports go.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover returns path itself when it is a regular file, or every file below
// the directory path whose name ends in ext, sorted.
func Discover(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %q: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ext) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}

// OutputDir is where the reports of file go. A lone input writes straight
// into base; otherwise the file's position below root is mirrored, with the
// extension dropped: root/a/run1.log becomes base/a/run1.
func OutputDir(base, root, file string, single bool) (string, error) {
	if single {
		return base, nil
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("failed to place %q below %q: %w", file, root, err)
	}
	if rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		rel = filepath.Base(file)
	}
	return filepath.Join(base, strings.TrimSuffix(rel, filepath.Ext(rel))), nil
}
