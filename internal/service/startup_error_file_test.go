package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStartupErrorFile_CreatesFileWithError(t *testing.T) {
	dir := t.TempDir()
	err := fmt.Errorf("invalid Tracking.Interval \"ten\": time: invalid duration \"ten\"")

	WriteStartupErrorFile(dir, err)

	data, readErr := os.ReadFile(filepath.Join(dir, StartupErrorFileName))
	if readErr != nil {
		t.Fatalf("failed to read startup-error.log: %v", readErr)
	}

	content := string(data)

	if !strings.Contains(content, "invalid Tracking.Interval") {
		t.Errorf("expected error message in file, got:\n%s", content)
	}

	if !strings.Contains(content, "LocationAgent STARTUP ERROR") {
		t.Errorf("expected STARTUP ERROR label in file, got:\n%s", content)
	}
}

func TestWriteStartupErrorFile_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log", "LocationAgent")
	err := fmt.Errorf("test error")

	WriteStartupErrorFile(dir, err)

	data, readErr := os.ReadFile(filepath.Join(dir, StartupErrorFileName))
	if readErr != nil {
		t.Fatalf("directory not created or file not written: %v", readErr)
	}

	if !strings.Contains(string(data), "test error") {
		t.Errorf("expected error message, got: %s", string(data))
	}
}

func TestWriteStartupErrorFile_OverwritesPreviousFile(t *testing.T) {
	dir := t.TempDir()

	WriteStartupErrorFile(dir, fmt.Errorf("first error"))
	WriteStartupErrorFile(dir, fmt.Errorf("second error"))

	data, _ := os.ReadFile(filepath.Join(dir, StartupErrorFileName))
	content := string(data)

	if strings.Contains(content, "first error") {
		t.Error("expected first error to be overwritten")
	}
	if !strings.Contains(content, "second error") {
		t.Errorf("expected second error in file, got: %s", content)
	}
}

func TestWriteStartupErrorFile_NilErrorSafe(t *testing.T) {
	dir := t.TempDir()

	// Should not panic with nil error
	WriteStartupErrorFile(dir, nil)

	_, readErr := os.ReadFile(filepath.Join(dir, StartupErrorFileName))
	if readErr != nil {
		t.Fatalf("file should still be created: %v", readErr)
	}
}

func TestReportStartupFailure_WritesFile(t *testing.T) {
	dir := t.TempDir()

	ReportStartupFailure(dir, fmt.Errorf("unsupported provider type: wifi"))

	data, err := os.ReadFile(filepath.Join(dir, StartupErrorFileName))
	if err != nil {
		t.Fatalf("startup error file not written: %v", err)
	}
	if !strings.Contains(string(data), "unsupported provider type") {
		t.Errorf("unexpected content: %s", data)
	}
}
