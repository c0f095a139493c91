package display

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempFileConfig(t *testing.T, format string) FileConfig {
	t.Helper()
	return FileConfig{
		FilePath:   filepath.Join(t.TempDir(), "status", "status.log"),
		Format:     format,
		MaxSizeMB:  10,
		MaxBackups: 1,
	}
}

func readStatusLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read status file: %v", err)
	}
	raw := strings.TrimSpace(string(content))
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func TestNewFileDisplay_Validation(t *testing.T) {
	if _, err := NewFileDisplay(tempFileConfig(t, "xml")); err == nil || !strings.Contains(err.Error(), "unsupported status file format") {
		t.Errorf("expected format error, got %v", err)
	}
	if _, err := NewFileDisplay(FileConfig{}); err == nil {
		t.Error("expected error for empty path")
	}

	d, err := NewFileDisplay(tempFileConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d.Close()
	if d.format != "json" {
		t.Errorf("default format = %q, want json", d.format)
	}
}

func TestFileDisplay_JSONLifecycle(t *testing.T) {
	cfg := tempFileConfig(t, "json")
	d, err := NewFileDisplay(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	ctx := context.Background()

	id, err := d.Publish(ctx, "Tracking location...", "Location: null")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := d.Update(ctx, id, "Location: (234, 678)"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := d.Retract(ctx, id); err != nil {
		t.Fatalf("Retract failed: %v", err)
	}
	if err := d.Retract(ctx, id); err != nil {
		t.Errorf("second Retract = %v", err)
	}
	if err := d.Update(ctx, id, "late"); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("Update after Retract = %v, want ErrUnknownStatus", err)
	}

	lines := readStatusLines(t, cfg.FilePath)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (publish, update, retract)", len(lines))
	}
	var got []Status
	for _, l := range lines {
		var st Status
		if err := json.Unmarshal([]byte(l), &st); err != nil {
			t.Fatalf("line is not valid JSON: %v\n%s", err, l)
		}
		got = append(got, st)
	}
	if got[1].Text != "Location: (234, 678)" || got[1].Title != "Tracking location..." || !got[1].Active {
		t.Errorf("update line = %+v", got[1])
	}
	if got[2].Active || got[2].ID != id {
		t.Errorf("retract line = %+v", got[2])
	}
}

func TestFileDisplay_TextFormat(t *testing.T) {
	cfg := tempFileConfig(t, "text")
	d, err := NewFileDisplay(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	id, err := d.Publish(context.Background(), "Tracking location...", "Location: null")
	if err != nil {
		t.Fatal(err)
	}

	lines := readStatusLines(t, cfg.FilePath)
	if len(lines) != 1 {
		t.Fatalf("lines = %q", lines)
	}
	want := " id:" + string(id) + ",active:true,title:Tracking location...,text:Location: null"
	if !strings.HasSuffix(lines[0], want) {
		t.Errorf("line = %q, want suffix %q", lines[0], want)
	}
}

func TestFileDisplay_ClosedRejectsWrites(t *testing.T) {
	d, err := NewFileDisplay(tempFileConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := d.Publish(context.Background(), "t", "x"); err == nil {
		t.Error("Publish after Close should fail")
	}
}

func TestFormatText(t *testing.T) {
	st := Status{
		ID:     "file-7",
		Title:  "Tracking location...",
		Text:   "Location: (234, 678)",
		Active: true,
		Stamp:  time.Date(2026, 10, 19, 8, 12, 4, 311000000, time.UTC),
	}
	want := "2026-10-19 08:12:04,311 id:file-7,active:true,title:Tracking location...,text:Location: (234, 678)"
	if got := FormatText(st); got != want {
		t.Errorf("FormatText = %q, want %q", got, want)
	}
}
