package app

import (
	"os"
	"strconv"
)

// TestModeEnv is set by the testing package so binaries skip startup.
const TestModeEnv = "CONSOLE_TEST_MODE"

// InTestMode reports whether binaries should skip runtime side effects.
func InTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
}
