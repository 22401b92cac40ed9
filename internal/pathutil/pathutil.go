// Package pathutil converts between absolute and root-relative paths.
// Every stage up through scoring works in whatever form discover.Walk
// handed it (normally absolute, since callers pass absolute roots),
// but a report is easier to read with paths relative to the root that
// was scanned, so the conversion happens once, at the aggregate
// boundary, rather than threading two path forms through every stage.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir.
// Falls back to the original path when the conversion fails, the path
// is already relative, or the path falls outside rootDir.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}
	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	rel, err := filepath.Rel(rootDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return absPath
	}
	return rel
}

// ToRelativeAny tries each root in turn and returns the first relative
// conversion that lands inside that root, or absPath unchanged if none
// of the roots contain it.
func ToRelativeAny(absPath string, roots []string) string {
	for _, root := range roots {
		if rel := ToRelative(absPath, root); rel != absPath {
			return rel
		}
	}
	return absPath
}
