package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "ATLAS_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the process runs under `go test`; entry points
// use it to skip dialing Postgres, Redis, and the asynq server.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after t.Setenv changes it.
func RefreshTestMode() {
	detectTestMode()
}
