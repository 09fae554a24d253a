package testlogger

import (
	"os"
	"testing"

	"github.com/drand/sigma/common/log"
)

// Level returns the level to use in tests, based on the SIGMA_TEST_LOGS variable.
func Level(t testing.TB) int {
	if v, ok := os.LookupEnv(log.TestLogsEnv); ok && v == "DEBUG" {
		t.Log("Enabling DebugLevel logs")
		return log.DebugLevel
	}
	return log.InfoLevel
}

// New returns a logger tagged with the name of the running test.
func New(t testing.TB) log.Logger {
	return log.New(nil, Level(t), true).
		With("testName", t.Name())
}
