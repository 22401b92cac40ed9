// Package discover expands the caller's path list into concrete files,
// applying include/exclude globs ahead of C1. Grounded on lci's
// internal/indexing FileScanner pattern of validating glob patterns
// once and walking the tree.
package discover

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/valknut/internal/types"
)

// Filter holds validated include/exclude globs and matches paths
// against them.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates and stores the glob patterns. Patterns are
// matched with doublestar semantics (`**` for recursive directories).
func NewFilter(include, exclude []string) (*Filter, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, &invalidPatternError{pattern: p}
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, &invalidPatternError{pattern: p}
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

type invalidPatternError struct{ pattern string }

func (e *invalidPatternError) Error() string {
	return "discover: invalid glob pattern " + e.pattern
}

// Match reports whether a normalized, slash-separated relative path
// should be analyzed: it must match at least one include pattern (or
// there are none) and no exclude pattern.
func (f *Filter) Match(relPath string) bool {
	relPath = types.NormalizePath(relPath)

	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

// LanguageByExt maps a file extension to a supported LanguageTag, or
// "" if the extension isn't recognized.
func LanguageByExt(path string) types.LanguageTag {
	switch filepath.Ext(path) {
	case ".go":
		return types.LangGo
	case ".py":
		return types.LangPython
	case ".ts", ".tsx":
		return types.LangTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return types.LangJavaScript
	case ".rs":
		return types.LangRust
	case ".java":
		return types.LangJava
	case ".cs":
		return types.LangCSharp
	case ".cpp", ".cc", ".cxx", ".hpp", ".h":
		return types.LangCpp
	case ".php":
		return types.LangPHP
	case ".zig":
		return types.LangZig
	default:
		return ""
	}
}

// Walk expands roots (files or directories) into a deterministic,
// sorted list of files whose language is in languages and which pass
// the filter. Errors walking an individual root are skipped; a
// completely unreadable root yields no files, not an error, since a
// missing path contributes zero entities like any other empty input.
func Walk(roots []string, languages map[types.LanguageTag]bool, filter *Filter) []string {
	var out []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if lang := LanguageByExt(root); lang != "" && languages[lang] && filter.Match(root) {
				out = append(out, root)
			}
			continue
		}
		_ = filepath.Walk(root, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if fi.IsDir() {
				return nil
			}
			lang := LanguageByExt(path)
			if lang == "" || !languages[lang] {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			if filter.Match(rel) {
				out = append(out, path)
			}
			return nil
		})
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
