package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevelEnvName overrides the logrus level used by tests, which defaults to
// trace so that every ledger and program log line runs under test.
const LogLevelEnvName = "TESTUTIL_LOG_LEVEL"

func init() {
	level := logrus.TraceLevel
	if parsed, err := logrus.ParseLevel(os.Getenv(LogLevelEnvName)); err == nil {
		level = parsed
	}
	logrus.SetLevel(level)

	// Output is only kept for verbose runs
	if !isVerbose(os.Args) {
		logrus.SetOutput(io.Discard)
	}
}

func isVerbose(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-test.v", "-test.v=true", "-test.v=test2json":
			return true
		}
	}
	return false
}
