package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/valknut/internal/types"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, name)
	require.NoError(t, os.WriteFile(tmpFile, content, 0o644))
	return tmpFile
}

func TestFileValidatorAcceptsValidSource(t *testing.T) {
	validator := NewFileValidator(100)

	goFile := writeTempFile(t, "test.go", []byte(`package main

import "fmt"

func main() {
	fmt.Println("Hello, World!")
}
`))
	assert.NoError(t, validator.ValidateLargeFile(goFile, types.LangGo))

	pyFile := writeTempFile(t, "test.py", []byte(`def hello():
    print("Hello, World!")

if __name__ == "__main__":
    hello()
`))
	assert.NoError(t, validator.ValidateLargeFile(pyFile, types.LangPython))
}

func TestFileValidatorSkipsFilesUnderThreshold(t *testing.T) {
	validator := NewFileValidator(100)
	path := writeTempFile(t, "test.go", []byte("package main\nfunc main() {}\n"))
	assert.NoError(t, validator.ValidateLargeFile(path, types.LangGo))
}

func TestFileValidatorRejectsImageAsCode(t *testing.T) {
	validator := NewFileValidator(100)
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	content := append(pngHeader, make([]byte, 100*1024)...)

	path := writeTempFile(t, "malicious.go", content)
	err := validator.ValidateLargeFile(path, types.LangGo)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}

func TestFileValidatorRejectsBinaryAsGo(t *testing.T) {
	validator := NewFileValidator(100)
	content := make([]byte, 100*1024)
	for i := range content {
		content[i] = byte(128 + (i % 128))
	}

	path := writeTempFile(t, "malicious.go", content)
	err := validator.ValidateLargeFile(path, types.LangGo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}
