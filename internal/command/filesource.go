package command

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"locationagent/internal/config"
	"locationagent/internal/logger"
)

// FileSource reads a command from the first line of a control file each
// time the file is written.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the control file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

// Run watches the control file until ctx is done.
func (s *FileSource) Run(ctx context.Context, sink Sink) error {
	log := logger.WithComponent("command-file")

	w, err := config.NewFileWatcher(s.path, func() {
		line, err := firstLine(s.path)
		if err != nil {
			log.Debug().Err(err).Str("path", s.path).Msg("Control file unreadable")
			return
		}
		cmd := Parse(line)
		if cmd == Unknown {
			if line != "" {
				log.Debug().Str("content", line).Msg("Ignoring unknown command")
			}
			return
		}
		sink(cmd)
	})
	if err != nil {
		return fmt.Errorf("failed to create control file watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return fmt.Errorf("failed to watch control file %s: %w", s.path, err)
	}

	<-ctx.Done()
	return w.Stop()
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text(), nil
	}
	return "", sc.Err()
}

// WriteControlFile replaces the control file content with cmd.
func WriteControlFile(path string, cmd Command) error {
	if cmd == Unknown {
		return fmt.Errorf("refusing to write unknown command")
	}
	if err := os.WriteFile(path, []byte(cmd.String()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write control file: %w", err)
	}
	return nil
}
