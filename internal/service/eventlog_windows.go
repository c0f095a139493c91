//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// ReportStartupError writes a startup error to the Windows Event Log under
// source, so Event Viewer shows why the agent failed before logging was
// configured.
func ReportStartupError(source string, err error) {
	_ = eventlog.InstallAsEventCreate(source, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, openErr := eventlog.Open(source)
	if openErr != nil {
		return
	}
	defer elog.Close()

	elog.Error(1, fmt.Sprintf("Location agent failed to start: %v", err))
}
