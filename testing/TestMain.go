// Package testing forces test mode for any package that imports it, so test
// binaries never attempt to dial Postgres or Redis on startup.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ATLAS_TEST_MODE", "1")
	})
}

// The flag has to be set at import time: envconfig runs before TestMain when
// a package builds its config in a variable initializer.
func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
