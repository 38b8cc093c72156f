package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// normalizePatterns turns "*.png", "png" and ".png" into ".png" and drops
// empty and duplicate entries while keeping the configured order.
func normalizePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "*")
		if p == "" || p == "." {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// discoverImageFiles finds all files in dir whose extension equals one of
// patterns. Matching is literal and case-sensitive. Without sorting, files are
// grouped by pattern in pattern order and keep the directory listing order
// within a group.
func discoverImageFiles(dir string, patterns, excludePatterns []string, recursive, sorted bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	listing, err := listDirectory(dir, recursive)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, ext := range normalizePatterns(patterns) {
		for _, path := range listing {
			if filepath.Ext(path) != ext {
				continue
			}
			if matchesAnyPattern(path, excludePatterns) {
				continue
			}
			files = append(files, path)
		}
	}

	if sorted {
		sort.Strings(files)
	}
	return files, nil
}

// listDirectory returns regular files under dir in the order the filesystem
// reports them, descending into subdirectories when recursive is set.
func listDirectory(dir string, recursive bool) ([]string, error) {
	f, err := os.Open(dir) //nolint:gosec // G304: input directory comes from the user
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", dir, err)
	}
	entries, err := f.ReadDir(-1)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if !recursive {
				continue
			}
			sub, err := listDirectory(path, true)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		if entry.Type().IsRegular() || entry.Type()&os.ModeSymlink != 0 {
			files = append(files, path)
		}
	}
	return files, nil
}

// matchesAnyPattern checks if a file's base name matches any of the given glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
