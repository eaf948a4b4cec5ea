package transport

import (
	"fmt"
	"os"
)

// debugEnabled turns on verbose per-packet/per-frame tracing to stderr,
// independent of the structured LogEvent stream consumed via OnLogEvent.
// It exists for local debugging only; production tracing goes through
// LogEvent.
var debugEnabled = os.Getenv("QCORE_DEBUG") != ""

func debug(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
