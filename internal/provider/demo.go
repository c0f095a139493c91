package provider

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"locationagent/internal/location"
	"locationagent/internal/logger"
)

// DemoConfig centers the simulated drive.
type DemoConfig struct {
	CenterLat float64
	CenterLon float64
	RadiusDeg float64
	// SampleEvery is how often a simulated fix is produced. Default 1s.
	SampleEvery time.Duration
}

// Demo simulates a receiver driving in a circle around a point.
type Demo struct {
	cfg   DemoConfig
	clock clock.Clock
	reg   registry
}

// NewDemo creates the simulated provider. A nil clock means the wall clock.
func NewDemo(cfg DemoConfig, clk clock.Clock) *Demo {
	if cfg.CenterLat == 0 && cfg.CenterLon == 0 {
		cfg.CenterLat, cfg.CenterLon = 43.6532, -79.3832
	}
	if cfg.RadiusDeg == 0 {
		cfg.RadiusDeg = 0.005 // ~500m
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Demo{cfg: cfg, clock: clk}
}

func (d *Demo) Name() string { return "demo" }

func (d *Demo) Subscribe(interval time.Duration, onBatch func([]location.Fix), onError func(error)) (location.Handle, error) {
	b := NewBatcher(d.clock, interval, onBatch, onError)
	f := newFeed(b, nil)
	h := d.reg.add(f)

	sample := d.clock.Ticker(d.cfg.SampleEvery)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer sample.Stop()
		var t float64
		for {
			select {
			case <-f.stop:
				return
			case <-sample.C:
				t += 0.1
				b.Add(d.at(t))
			}
		}
	}()
	b.Start(f.stop)

	log := logger.WithComponent("provider-demo")
	log.Info().Uint64("handle", uint64(h)).Dur("interval", interval).Msg("Simulated receiver started")
	return h, nil
}

func (d *Demo) at(t float64) location.Fix {
	return location.Fix{
		Latitude:   d.cfg.CenterLat + d.cfg.RadiusDeg*math.Sin(t*0.1),
		Longitude:  d.cfg.CenterLon + d.cfg.RadiusDeg*math.Cos(t*0.1),
		CapturedAt: d.clock.Now(),
		Altitude:   76,
		Accuracy:   4,
		Source:     d.Name(),
	}
}

func (d *Demo) Unsubscribe(h location.Handle) error {
	if err := d.reg.unsubscribe(h); err != nil {
		return err
	}
	log := logger.WithComponent("provider-demo")
	log.Info().Uint64("handle", uint64(h)).Msg("Simulated receiver stopped")
	return nil
}

// Close stops every simulated receiver.
func (d *Demo) Close() error {
	d.reg.closeAll()
	return nil
}
