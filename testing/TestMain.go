// Package testing switches binaries into test mode when imported by tests.
package testing

import (
	"os"
	stdtesting "testing"
)

func init() {
	_ = os.Setenv("CONSOLE_TEST_MODE", "1")
	if os.Getenv("BACKEND_BASE_URL") == "" {
		_ = os.Setenv("BACKEND_BASE_URL", "http://127.0.0.1:0")
	}
}

// TestMain runs the package tests after init switched on test mode.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
