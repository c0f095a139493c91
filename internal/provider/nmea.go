package provider

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/benbjohnson/clock"
	"go.bug.st/serial"

	"locationagent/internal/location"
	"locationagent/internal/logger"
)

// NMEAConfig holds configuration for the NMEA serial provider.
type NMEAConfig struct {
	PortPath string
	BaudRate int
}

// OpenFunc opens the receiver's byte stream.
type OpenFunc func(path string, baud int) (io.ReadCloser, error)

// OpenSerial opens a serial port with 8N1 framing.
func OpenSerial(path string, baud int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// NMEA reads NMEA 0183 sentences from a serial receiver. RMC sentences with
// a valid fix produce Fixes; GGA sentences contribute altitude and HDOP.
type NMEA struct {
	cfg   NMEAConfig
	open  OpenFunc
	clock clock.Clock
	reg   registry
}

// NewNMEA creates the provider. A nil open means OpenSerial and a nil
// clock means the wall clock.
func NewNMEA(cfg NMEAConfig, open OpenFunc, clk clock.Clock) *NMEA {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if open == nil {
		open = OpenSerial
	}
	if clk == nil {
		clk = clock.New()
	}
	return &NMEA{cfg: cfg, open: open, clock: clk}
}

func (n *NMEA) Name() string { return "nmea" }

func (n *NMEA) Subscribe(interval time.Duration, onBatch func([]location.Fix), onError func(error)) (location.Handle, error) {
	log := logger.WithComponent("provider-nmea")

	port, err := n.open(n.cfg.PortPath, n.cfg.BaudRate)
	if err != nil {
		return 0, fmt.Errorf("nmea: open %s: %w", n.cfg.PortPath, err)
	}

	b := NewBatcher(n.clock, interval, onBatch, onError)
	f := newFeed(b, port.Close)
	h := n.reg.add(f)

	f.wg.Add(1)
	go n.read(port, f, b)
	b.Start(f.stop)

	log.Info().
		Str("port", n.cfg.PortPath).
		Int("baud", n.cfg.BaudRate).
		Uint64("handle", uint64(h)).
		Dur("interval", interval).
		Msg("Subscribed to NMEA receiver")
	return h, nil
}

func (n *NMEA) Unsubscribe(h location.Handle) error {
	log := logger.WithComponent("provider-nmea")
	if err := n.reg.unsubscribe(h); err != nil {
		if errors.Is(err, ErrUnknownHandle) {
			return err
		}
		log.Debug().Err(err).Uint64("handle", uint64(h)).Msg("Serial port close failed")
	}
	log.Info().Uint64("handle", uint64(h)).Msg("Unsubscribed from NMEA receiver")
	return nil
}

// Close releases every open port.
func (n *NMEA) Close() error {
	n.reg.closeAll()
	return nil
}

func (n *NMEA) read(r io.Reader, f *feed, b *Batcher) {
	defer f.wg.Done()
	log := logger.WithComponent("provider-nmea")

	var p nmeaParser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fix, ok := p.parse(scanner.Text())
		if !ok {
			continue
		}
		if fix.CapturedAt.IsZero() {
			fix.CapturedAt = n.clock.Now()
		}
		fix.Source = n.Name()
		b.Add(fix)
	}

	if f.stopping() {
		return
	}
	err := scanner.Err()
	if err == nil {
		err = ErrStreamEnded
	}
	log.Error().Err(err).Str("port", n.cfg.PortPath).Msg("NMEA receiver read failed")
	b.Fail(fmt.Errorf("nmea: read %s: %w", n.cfg.PortPath, err))
}

// nmeaParser turns sentences into fixes, remembering the last GGA data.
type nmeaParser struct {
	altitude float64
	hdop     float64
}

// Approximate metres of horizontal error per unit of HDOP.
const hdopMeters = 5.0

func (p *nmeaParser) parse(line string) (location.Fix, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return location.Fix{}, false
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return location.Fix{}, false
	}

	switch s.DataType() {
	case nmea.TypeGGA:
		gga := s.(nmea.GGA)
		if gga.FixQuality == nmea.Invalid {
			return location.Fix{}, false
		}
		p.altitude = gga.Altitude
		p.hdop = gga.HDOP
		return location.Fix{}, false

	case nmea.TypeRMC:
		rmc := s.(nmea.RMC)
		if rmc.Validity != nmea.ValidRMC {
			return location.Fix{}, false
		}
		return location.Fix{
			Latitude:   rmc.Latitude,
			Longitude:  rmc.Longitude,
			CapturedAt: rmcTime(rmc),
			Altitude:   p.altitude,
			Accuracy:   p.hdop * hdopMeters,
		}, true
	}
	return location.Fix{}, false
}

func rmcTime(rmc nmea.RMC) time.Time {
	if !rmc.Date.Valid || !rmc.Time.Valid {
		return time.Time{}
	}
	return time.Date(2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD,
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second, rmc.Time.Millisecond*int(time.Millisecond), time.UTC)
}
