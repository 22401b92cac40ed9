// Package security guards the parse stage against files that only
// look like source by extension. A large binary saved with a .go or
// .py suffix wastes a tree-sitter parse and can bloat memory; this
// package reads just the file's header and rejects anything that
// doesn't look like the language its extension claims.
// Grounded on lci's internal/security/file_validator.go, with a
// language-pattern table for Go, Python, TypeScript and JavaScript
// only; files in the other parsed languages skip the pattern check.
package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/valknut/internal/types"
)

// FileValidator checks large files before they reach the parser.
// Files at or under ValidationThreshold bytes are never inspected,
// since the cost of a wasted parse on a small file is negligible.
type FileValidator struct {
	ValidationThreshold int64
	HeaderSize          int64
}

// NewFileValidator builds a validator with a threshold in kilobytes.
func NewFileValidator(thresholdKB int64) *FileValidator {
	return &FileValidator{
		ValidationThreshold: thresholdKB * 1024,
		HeaderSize:          64 * 1024,
	}
}

// ValidateLargeFile reads the file's header and rejects it if it
// doesn't look like lang's source. Small files (at or under the
// threshold) are always accepted without being read.
func (fv *FileValidator) ValidateLargeFile(path string, lang types.LanguageTag) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("security: stat %s: %w", path, err)
	}
	if info.Size() <= fv.ValidationThreshold {
		return nil
	}

	header := make([]byte, fv.HeaderSize)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("security: open %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("security: read header of %s: %w", path, err)
	}
	header = header[:n]

	if err := checkMagicBytes(path, header); err != nil {
		return err
	}
	if isBinaryData(header) {
		return fmt.Errorf("security: %s looks binary despite its extension", path)
	}
	return validateLanguagePatterns(lang, header)
}

var magicBytes = map[string][]byte{
	".png": {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	".jpg": {0xFF, 0xD8, 0xFF},
	".gif": {0x47, 0x49, 0x46, 0x38, 0x39, 0x61},
	".pdf": {0x25, 0x50, 0x44, 0x46, 0x2D},
	".zip": {0x50, 0x4B, 0x03, 0x04},
	".exe": {0x4D, 0x5A},
	".dll": {0x4D, 0x5A},
}

func checkMagicBytes(path string, header []byte) error {
	ext := strings.ToLower(filepath.Ext(path))
	if magic, ok := magicBytes[ext]; ok && !bytes.HasPrefix(header, magic) {
		return fmt.Errorf("security: %s extension but mismatched file signature", ext)
	}
	return nil
}

func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	nonPrintable := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if (r == utf8.RuneError && size == 1) || r < 9 || (r > 13 && r < 32) || r == 127 {
			nonPrintable += size
		}
		i += size
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}

var languagePatterns = map[types.LanguageTag][][]byte{
	types.LangGo: {
		[]byte("package "), []byte("import ("), []byte("func "),
		[]byte("type "), []byte("var "), []byte("const "),
	},
	types.LangPython: {
		[]byte("def "), []byte("import "), []byte("from "),
		[]byte("class "), []byte("if __name__"), []byte("self."),
	},
	types.LangJavaScript: {
		[]byte("function "), []byte("const "), []byte("let "),
		[]byte("=>"), []byte("require("), []byte("module.exports"),
	},
	types.LangTypeScript: {
		[]byte("interface "), []byte("enum "), []byte(": string"),
		[]byte(": number"), []byte("export "), []byte("import "),
	},
}

func validateLanguagePatterns(lang types.LanguageTag, header []byte) error {
	patterns, ok := languagePatterns[lang]
	if !ok {
		return nil
	}
	for _, pattern := range patterns {
		if bytes.Contains(header, pattern) {
			return nil
		}
	}
	return errors.New("security: no recognizable " + string(lang) + " patterns in header")
}
