package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFileName is written into the log directory when the agent
// fails before its logger exists.
const StartupErrorFileName = "startup-error.log"

// WriteStartupErrorFile records err in logDir, replacing any earlier record.
// Failures are ignored; there is nowhere left to report them.
func WriteStartupErrorFile(logDir string, err error) {
	_ = os.MkdirAll(logDir, 0755)

	f, ferr := os.Create(filepath.Join(logDir, StartupErrorFileName))
	if ferr != nil {
		return
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s STARTUP ERROR\n%v\n", ts, Name, err)
}

// ReportStartupFailure sends err to every channel available before logging
// is configured: the platform event log, a file in logDir and stderr.
func ReportStartupFailure(logDir string, err error) {
	ReportStartupError(Name, err)
	WriteStartupErrorFile(logDir, err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", Name, err)
}
