package display

import (
	"context"
	"sync"

	"locationagent/internal/logger"
)

// LogDisplay writes the status artifact to the agent log.
type LogDisplay struct {
	mu   sync.Mutex
	live map[ID]string // id -> title
}

// NewLogDisplay creates a LogDisplay.
func NewLogDisplay() *LogDisplay {
	return &LogDisplay{live: make(map[ID]string)}
}

func (d *LogDisplay) Publish(_ context.Context, title, text string) (ID, error) {
	id := nextID("log")
	d.mu.Lock()
	d.live[id] = title
	d.mu.Unlock()

	log := logger.WithComponent("status")
	log.Info().Str("id", string(id)).Str("title", title).Str("text", text).Msg("Status published")
	return id, nil
}

func (d *LogDisplay) Update(_ context.Context, id ID, text string) error {
	d.mu.Lock()
	title, ok := d.live[id]
	d.mu.Unlock()
	if !ok {
		return ErrUnknownStatus
	}

	log := logger.WithComponent("status")
	log.Info().Str("id", string(id)).Str("title", title).Str("text", text).Msg("Status updated")
	return nil
}

func (d *LogDisplay) Retract(_ context.Context, id ID) error {
	d.mu.Lock()
	_, ok := d.live[id]
	delete(d.live, id)
	d.mu.Unlock()

	if ok {
		log := logger.WithComponent("status")
		log.Info().Str("id", string(id)).Msg("Status retracted")
	}
	return nil
}

// Live returns the number of artifacts currently shown.
func (d *LogDisplay) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *LogDisplay) Close() error {
	d.mu.Lock()
	d.live = make(map[ID]string)
	d.mu.Unlock()
	return nil
}
