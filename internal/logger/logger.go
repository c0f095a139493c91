// Package logger provides the agent's structured logging with file rotation.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// asyncWriter makes console writes non-blocking. A stalled terminal must not
// hold up the goroutine that is delivering a position fix; when the buffer
// is full the line is dropped.
type asyncWriter struct {
	ch     chan []byte
	w      io.Writer
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:   make(chan []byte, bufSize),
		w:    w,
		done: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}
	line := append([]byte(nil), p...)
	select {
	case aw.ch <- line:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) drain() {
	defer close(aw.done)
	for p := range aw.ch {
		_, _ = aw.w.Write(p)
	}
}

// Close stops accepting lines and waits until the buffered ones are written.
func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		close(aw.ch)
		aw.mu.Unlock()
		<-aw.done
	})
}

// Config holds the logger configuration (Logging.json).
type Config struct {
	Level      string `json:"Level" yaml:"level"`
	FilePath   string `json:"FilePath" yaml:"file_path"`
	Format     string `json:"Format" yaml:"format"` // "json" (default) or "fixed"
	MaxSizeMB  int    `json:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `json:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `json:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `json:"Compress" yaml:"compress"`
	Console    bool   `json:"Console" yaml:"console"`
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/LocationAgent/agent.log",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    false,
	}
}

var (
	mu            sync.RWMutex
	globalLogger  = zerolog.Nop()
	serviceMode   bool
	activeFile    io.Closer
	activeConsole *asyncWriter
)

// SetServiceMode suppresses console output when the agent has no terminal.
func SetServiceMode(on bool) {
	mu.Lock()
	defer mu.Unlock()
	serviceMode = on
}

// Init (re)builds the global logger. It is safe to call again when
// Logging.json changes; writers from the previous call are closed.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if activeFile != nil {
		activeFile.Close()
		activeFile = nil
	}
	if activeConsole != nil {
		activeConsole.Close()
		activeConsole = nil
	}

	if level == zerolog.Disabled {
		globalLogger = zerolog.Nop()
		return nil
	}

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		activeFile = fileWriter

		var out io.Writer = fileWriter
		if strings.EqualFold(cfg.Format, "fixed") {
			out = NewFixedFormatWriter(fileWriter)
		}
		writers = append(writers, out)
	}

	if cfg.Console && !serviceMode {
		aw := newAsyncWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, 1000)
		activeConsole = aw
		writers = append(writers, aw)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Caller().Logger()
	return nil
}

// Close flushes and closes the writers opened by Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if activeConsole != nil {
		activeConsole.Close()
		activeConsole = nil
	}
	if activeFile != nil {
		activeFile.Close()
		activeFile = nil
	}
	globalLogger = zerolog.Nop()
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// WithComponent returns a logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger.With().Str("component", component).Logger()
}
