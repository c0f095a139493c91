package command

import "context"

// ChanSource forwards commands sent on a channel by an in-process caller,
// such as the service manager pausing the agent.
type ChanSource struct {
	name string
	ch   <-chan Command
}

// NewChanSource creates a source reading from ch.
func NewChanSource(name string, ch <-chan Command) *ChanSource {
	return &ChanSource{name: name, ch: ch}
}

func (s *ChanSource) Name() string { return s.name }

// Run forwards commands until ctx is done.
func (s *ChanSource) Run(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.ch:
			sink(cmd)
		}
	}
}
