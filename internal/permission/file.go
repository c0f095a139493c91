package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"locationagent/internal/logger"
)

// FileAuthorizer reads the grants from a JSON or YAML file on every query,
// so a change takes effect on the next start. A missing or unreadable file
// grants nothing.
type FileAuthorizer struct {
	path string
}

// NewFileAuthorizer creates an authorizer backed by path.
func NewFileAuthorizer(path string) *FileAuthorizer {
	return &FileAuthorizer{path: path}
}

// Load reads the grants file.
func (f *FileAuthorizer) Load() (Grants, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Grants{}, fmt.Errorf("failed to read grants file: %w", err)
	}

	var g Grants
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &g)
	default:
		err = json.Unmarshal(data, &g)
	}
	if err != nil {
		return Grants{}, fmt.Errorf("failed to parse grants file %s: %w", f.path, err)
	}
	return g, nil
}

func (f *FileAuthorizer) HasPositioningAuthorization(context.Context) bool {
	g, err := f.Load()
	if err != nil {
		log := logger.WithComponent("permission")
		log.Warn().Err(err).Str("path", f.path).Msg("Location grants unavailable")
		return false
	}
	return g.Sufficient()
}
