// Package display renders the agent's single status artifact: the visible
// declaration that location tracking is running.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ID identifies a published status artifact.
type ID string

// Display shows at most one status artifact per controller.
//
// Publish makes a new artifact visible. Update replaces the text of a live
// artifact. Retract removes it; retracting an unknown or already retracted
// artifact is not an error.
type Display interface {
	Publish(ctx context.Context, title, text string) (ID, error)
	Update(ctx context.Context, id ID, text string) error
	Retract(ctx context.Context, id ID) error
	Close() error
}

// ErrUnknownStatus is returned by Update for an artifact that is not live.
var ErrUnknownStatus = errors.New("unknown status artifact")

// Status is the wire form of an artifact, shared by the websocket, MQTT
// and file displays.
type Status struct {
	ID     ID        `json:"id"`
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	Active bool      `json:"active"`
	Stamp  time.Time `json:"stamp"`
}

var idSeq atomic.Uint64

func nextID(prefix string) ID {
	return ID(fmt.Sprintf("%s-%d", prefix, idSeq.Add(1)))
}

// Config selects and configures a display backend.
type Config struct {
	Type       string // "log", "websocket", "mqtt" or "file"
	ListenAddr string
	MQTT       MQTTConfig
	File       FileConfig
}

// New creates the display selected by cfg.Type.
func New(cfg Config) (Display, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "log":
		return NewLogDisplay(), nil
	case "websocket":
		return NewWebSocketDisplay(cfg.ListenAddr)
	case "mqtt":
		return NewMQTTDisplay(cfg.MQTT)
	case "file":
		return NewFileDisplay(cfg.File)
	default:
		return nil, fmt.Errorf("unsupported display type: %s (supported: log, websocket, mqtt, file)", cfg.Type)
	}
}
