package provider

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	gpsd "github.com/atotto/go-gpsd"
	"github.com/benbjohnson/clock"

	"locationagent/internal/location"
	"locationagent/internal/logger"
)

// ErrStreamEnded is reported when a device stream ends on its own.
var ErrStreamEnded = errors.New("position stream ended")

// DefaultStaleAfter is how long a gpsd session may stay silent before it is
// treated as ended. gpsd sends a TPV report every cycle even without a fix.
const DefaultStaleAfter = 15 * time.Second

// GPSD reads TPV reports from a gpsd daemon. Each subscription has its own
// session.
type GPSD struct {
	addr       string
	staleAfter time.Duration
	clock      clock.Clock
	reg        registry
}

// NewGPSD creates a provider for the daemon at addr ("host:port"). A nil
// clock means the wall clock.
func NewGPSD(addr string, clk clock.Clock) *GPSD {
	if addr == "" {
		addr = gpsd.DefaultAddress
	}
	if clk == nil {
		clk = clock.New()
	}
	return &GPSD{addr: addr, staleAfter: DefaultStaleAfter, clock: clk}
}

func (g *GPSD) Name() string { return "gpsd" }

func (g *GPSD) Subscribe(interval time.Duration, onBatch func([]location.Fix), onError func(error)) (location.Handle, error) {
	log := logger.WithComponent("provider-gpsd")

	session, err := gpsd.Dial(g.addr)
	if err != nil {
		return 0, fmt.Errorf("gpsd: dial %s: %w", g.addr, err)
	}

	b := NewBatcher(g.clock, interval, onBatch, onError)
	var lastSeen atomic.Int64
	lastSeen.Store(g.clock.Now().UnixNano())

	session.Subscribe("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		lastSeen.Store(g.clock.Now().UnixNano())
		if f, ok := g.fixFromTPV(tpv); ok {
			b.Add(f)
		}
	})

	f := newFeed(b, func() error {
		session.Close()
		return nil
	})
	h := g.reg.add(f)

	watchdog := g.clock.Ticker(g.staleAfter / 2)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer watchdog.Stop()
		for {
			select {
			case <-f.stop:
				return
			case now := <-watchdog.C:
				silent := now.Sub(time.Unix(0, lastSeen.Load()))
				if silent >= g.staleAfter {
					b.Fail(fmt.Errorf("%w: no report from gpsd for %s", ErrStreamEnded, silent))
					return
				}
			}
		}
	}()

	b.Start(f.stop)
	session.Run()

	log.Info().
		Str("addr", g.addr).
		Uint64("handle", uint64(h)).
		Dur("interval", interval).
		Msg("Subscribed to gpsd")
	return h, nil
}

func (g *GPSD) Unsubscribe(h location.Handle) error {
	log := logger.WithComponent("provider-gpsd")
	if err := g.reg.unsubscribe(h); err != nil {
		return err
	}
	log.Info().Uint64("handle", uint64(h)).Msg("Unsubscribed from gpsd")
	return nil
}

// Close ends every live session.
func (g *GPSD) Close() error {
	g.reg.closeAll()
	return nil
}

func (g *GPSD) fixFromTPV(tpv *gpsd.TPVReport) (location.Fix, bool) {
	if tpv.Mode != gpsd.Mode2D && tpv.Mode != gpsd.Mode3D {
		return location.Fix{}, false
	}
	f := location.Fix{
		Latitude:   tpv.Lat,
		Longitude:  tpv.Lon,
		CapturedAt: tpv.Time,
		Source:     g.Name(),
	}
	if f.CapturedAt.IsZero() {
		f.CapturedAt = g.clock.Now()
	}
	if tpv.Mode == gpsd.Mode3D {
		f.Altitude = tpv.Alt
	}
	if tpv.Epx > 0 && tpv.Epy > 0 {
		f.Accuracy = math.Max(tpv.Epx, tpv.Epy)
	}
	return f, true
}
