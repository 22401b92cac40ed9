package obs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStageWritesWhenOutputSet(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	LogStage("stage %s done", "parse")
	assert.Contains(t, buf.String(), "[stage]")
	assert.Contains(t, buf.String(), "stage parse done")
}

func TestLogSilentWhenOutputNil(t *testing.T) {
	SetOutput(nil)
	LogParse("should not panic")
}
