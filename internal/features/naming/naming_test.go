package naming_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/valknut/internal/features/naming"
)

func TestTokenizeCamelCaseAndSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "name"}, naming.Tokenize("getUserName"))
	assert.Equal(t, []string{"save", "user"}, naming.Tokenize("save_user"))
	assert.Equal(t, []string{"http", "client"}, naming.Tokenize("HTTPClient"))
}

func TestMismatchScoreLowForAlignedName(t *testing.T) {
	sig := naming.Signature{SideEffects: true}
	score := naming.MismatchScore("saveUser", sig)
	assert.Less(t, score, 0.5)
}

func TestMismatchScoreHighForMisleadingName(t *testing.T) {
	sig := naming.Signature{SideEffects: true, Async: true}
	score := naming.MismatchScore("getValue", sig)
	assert.Greater(t, score, 0.3)
}

func TestMismatchScoreBounded(t *testing.T) {
	sig := naming.Signature{SideEffects: true, ReturnsMultiple: true, ReturnsOptional: true, Async: true}
	score := naming.MismatchScore("x", sig)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
