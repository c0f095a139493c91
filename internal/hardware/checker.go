// Package hardware reports which positioning sources are available on the
// host: satellite receivers attached over serial, and network positioning
// daemons.
package hardware

import (
	"context"

	"locationagent/internal/logger"
)

// Probe checks one kind of positioning source.
type Probe interface {
	Name() string
	Enabled(ctx context.Context) bool
}

// Checker groups probes by source kind. A source kind is enabled when any
// of its probes is.
type Checker struct {
	Satellite []Probe
	Network   []Probe
}

// Config lists the probes to build.
type Config struct {
	SerialDevices   []string
	DetectSerial    bool
	DaemonProcesses []string
	AssumeSatellite bool
	AssumeNetwork   bool
}

// NewChecker builds the serial and daemon probes from cfg. The Assume flags
// add a probe that is always on.
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		Satellite: []Probe{NewSerialProbe(cfg.SerialDevices, cfg.DetectSerial)},
		Network:   []Probe{NewDaemonProbe(cfg.DaemonProcesses)},
	}
	if cfg.AssumeSatellite {
		c.Satellite = append(c.Satellite, StaticProbe{Label: "assume-satellite", On: true})
	}
	if cfg.AssumeNetwork {
		c.Network = append(c.Network, StaticProbe{Label: "assume-network", On: true})
	}
	return c
}

// IsAnyPositioningSourceEnabled reports whether a satellite or a network
// source is enabled.
func (c *Checker) IsAnyPositioningSourceEnabled(ctx context.Context) bool {
	return c.SatelliteEnabled(ctx) || c.NetworkEnabled(ctx)
}

// SatelliteEnabled reports whether any satellite probe is enabled.
func (c *Checker) SatelliteEnabled(ctx context.Context) bool {
	return anyEnabled(ctx, "satellite", c.Satellite)
}

// NetworkEnabled reports whether any network probe is enabled.
func (c *Checker) NetworkEnabled(ctx context.Context) bool {
	return anyEnabled(ctx, "network", c.Network)
}

func anyEnabled(ctx context.Context, kind string, probes []Probe) bool {
	log := logger.WithComponent("hardware")
	for _, p := range probes {
		if p.Enabled(ctx) {
			log.Debug().Str("kind", kind).Str("probe", p.Name()).Msg("Positioning source enabled")
			return true
		}
	}
	return false
}

// StaticProbe always reports the same answer.
type StaticProbe struct {
	Label string
	On    bool
}

func (p StaticProbe) Name() string {
	if p.Label == "" {
		return "static"
	}
	return p.Label
}

func (p StaticProbe) Enabled(context.Context) bool { return p.On }
