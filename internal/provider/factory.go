package provider

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"

	"locationagent/internal/location"
)

// Config selects and configures a provider.
type Config struct {
	Type        string // "gpsd", "nmea" or "demo"
	GPSDAddress string
	NMEA        NMEAConfig
	Demo        DemoConfig
	Clock       clock.Clock
}

// Closer is implemented by every provider in this package.
type Closer interface {
	location.Provider
	Close() error
}

// New creates the provider selected by cfg.Type.
func New(cfg Config) (Closer, error) {
	switch strings.ToLower(cfg.Type) {
	case "gpsd":
		return NewGPSD(cfg.GPSDAddress, cfg.Clock), nil
	case "nmea":
		return NewNMEA(cfg.NMEA, nil, cfg.Clock), nil
	case "demo":
		return NewDemo(cfg.Demo, cfg.Clock), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s (supported: gpsd, nmea, demo)", cfg.Type)
	}
}
