package display

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"locationagent/internal/logger"
)

// FileConfig configures a FileDisplay.
type FileConfig struct {
	FilePath   string
	Format     string // "json" (default) or "text"
	MaxSizeMB  int
	MaxBackups int
}

const textTimeFmt = "2006-01-02 15:04:05"

// FormatTextTimestamp formats to "2006-01-02 15:04:05,000".
func FormatTextTimestamp(t time.Time) string {
	return fmt.Sprintf("%s,%03d", t.Format(textTimeFmt), t.Nanosecond()/1e6)
}

// FormatText returns the plain text line for st.
func FormatText(st Status) string {
	return fmt.Sprintf("%s id:%s,active:%s,title:%s,text:%s",
		FormatTextTimestamp(st.Stamp), st.ID, strconv.FormatBool(st.Active), st.Title, st.Text)
}

// FileDisplay appends every status change to a rotated file, for kiosks
// and dashboards that tail a file.
type FileDisplay struct {
	writer *lumberjack.Logger
	format string

	mu     sync.Mutex
	live   map[ID]string // id -> title
	closed bool
}

// NewFileDisplay creates the display, making its directory if needed.
func NewFileDisplay(cfg FileConfig) (*FileDisplay, error) {
	log := logger.WithComponent("status-file")

	format := cfg.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("unsupported status file format %q: must be \"json\" or \"text\"", format)
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("status file path is required")
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create status file directory: %w", err)
		}
	}

	log.Info().
		Str("file_path", cfg.FilePath).
		Str("format", format).
		Msg("Status file initialized")

	return &FileDisplay{
		writer: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
		format: format,
		live:   make(map[ID]string),
	}, nil
}

func (d *FileDisplay) Publish(_ context.Context, title, text string) (ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := nextID("file")
	if err := d.writeLocked(Status{ID: id, Title: title, Text: text, Active: true, Stamp: time.Now()}); err != nil {
		return "", err
	}
	d.live[id] = title
	return id, nil
}

func (d *FileDisplay) Update(_ context.Context, id ID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	title, ok := d.live[id]
	if !ok {
		return ErrUnknownStatus
	}
	return d.writeLocked(Status{ID: id, Title: title, Text: text, Active: true, Stamp: time.Now()})
}

func (d *FileDisplay) Retract(_ context.Context, id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	title, ok := d.live[id]
	if !ok {
		return nil
	}
	delete(d.live, id)
	return d.writeLocked(Status{ID: id, Title: title, Active: false, Stamp: time.Now()})
}

func (d *FileDisplay) writeLocked(st Status) error {
	if d.closed {
		return fmt.Errorf("status file is closed")
	}

	var line []byte
	if d.format == "text" {
		line = []byte(FormatText(st))
	} else {
		var err error
		if line, err = json.Marshal(st); err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
	}

	if _, err := d.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}

// Close releases the file. Further calls fail.
func (d *FileDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.live = make(map[ID]string)
	return d.writer.Close()
}
