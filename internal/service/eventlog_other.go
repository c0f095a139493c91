//go:build !windows

package service

// ReportStartupError is a no-op on non-Windows platforms.
func ReportStartupError(source string, err error) {}
