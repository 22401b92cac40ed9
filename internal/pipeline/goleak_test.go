package pipeline_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain guards RunFanOut's worker pool: every spawned goroutine must
// exit once its queue drains or its context is cancelled, leaving
// nothing behind for the next run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
