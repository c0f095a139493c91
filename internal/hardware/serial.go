package hardware

import (
	"context"
	"os"

	"go.bug.st/serial"

	"locationagent/internal/logger"
)

// SerialProbe reports a satellite receiver as enabled when one of the
// configured device paths exists. With no paths configured and Detect set,
// any serial port on the host counts.
type SerialProbe struct {
	Devices []string
	Detect  bool

	stat      func(string) (os.FileInfo, error)
	listPorts func() ([]string, error)
}

// NewSerialProbe creates a probe for the given device paths.
func NewSerialProbe(devices []string, detect bool) *SerialProbe {
	return &SerialProbe{
		Devices:   devices,
		Detect:    detect,
		stat:      os.Stat,
		listPorts: serial.GetPortsList,
	}
}

func (p *SerialProbe) Name() string { return "serial" }

func (p *SerialProbe) Enabled(context.Context) bool {
	for _, dev := range p.Devices {
		if _, err := p.stat(dev); err == nil {
			return true
		}
	}
	if len(p.Devices) > 0 || !p.Detect {
		return false
	}

	ports, err := p.listPorts()
	if err != nil {
		log := logger.WithComponent("hardware")
		log.Debug().Err(err).Msg("Failed to enumerate serial ports")
		return false
	}
	return len(ports) > 0
}
