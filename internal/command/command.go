// Package command turns external START/STOP requests into calls on the
// tracking controller. Requests arrive from several sources and are applied
// one at a time by a single dispatcher worker.
package command

import (
	"context"
	"strings"
)

// Command is a tracking request.
type Command int

const (
	Unknown Command = iota
	Start
	Stop
)

func (c Command) String() string {
	switch c {
	case Start:
		return "START"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Parse maps a request string to a Command. START, STOP, ACTION_START and
// ACTION_STOP are accepted in any case; anything else is Unknown.
func Parse(s string) Command {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "START", "ACTION_START":
		return Start
	case "STOP", "ACTION_STOP":
		return Stop
	default:
		return Unknown
	}
}

// Sink accepts parsed commands. It must not block.
type Sink func(Command)

// Source delivers commands to a Sink until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}
