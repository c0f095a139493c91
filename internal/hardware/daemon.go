package hardware

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"locationagent/internal/logger"
)

// ProcessMatcher handles platform-aware process name matching.
// Windows: case-insensitive (matches tasklist behavior)
// Linux: case-sensitive
type ProcessMatcher struct {
	names           map[string]struct{}
	caseInsensitive bool
}

// NewProcessMatcher creates a matcher for the given process names.
func NewProcessMatcher(names []string) *ProcessMatcher {
	return newProcessMatcher(names, runtime.GOOS == "windows")
}

func newProcessMatcher(names []string, caseInsensitive bool) *ProcessMatcher {
	m := &ProcessMatcher{
		names:           make(map[string]struct{}, len(names)),
		caseInsensitive: caseInsensitive,
	}
	for _, name := range names {
		m.names[m.key(name)] = struct{}{}
	}
	return m
}

func (m *ProcessMatcher) key(name string) string {
	if m.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Matches returns true if name is one of the matcher's process names.
func (m *ProcessMatcher) Matches(name string) bool {
	if len(m.names) == 0 {
		return false
	}
	_, ok := m.names[m.key(name)]
	return ok
}

// Empty returns true if the matcher has no names.
func (m *ProcessMatcher) Empty() bool {
	return len(m.names) == 0
}

// DaemonProbe reports a network positioning source as enabled when one of
// the configured daemon processes is running.
type DaemonProbe struct {
	matcher   *ProcessMatcher
	listNames func(ctx context.Context) ([]string, error)
}

// NewDaemonProbe creates a probe for the given daemon process names.
func NewDaemonProbe(names []string) *DaemonProbe {
	return &DaemonProbe{
		matcher:   NewProcessMatcher(names),
		listNames: runningProcessNames,
	}
}

func (p *DaemonProbe) Name() string { return "daemon" }

func (p *DaemonProbe) Enabled(ctx context.Context) bool {
	if p.matcher.Empty() {
		return false
	}

	names, err := p.listNames(ctx)
	if err != nil {
		log := logger.WithComponent("hardware")
		log.Warn().Err(err).Msg("Failed to list processes")
		return false
	}
	for _, name := range names {
		if p.matcher.Matches(name) {
			return true
		}
	}
	return false
}

func runningProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
