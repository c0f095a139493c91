// Package permission answers whether the agent holds the location grants it
// needs. Tracking requires both the coarse and the fine grant.
package permission

import (
	"context"
	"strings"
)

// Grants is the set of location grants held by the agent.
type Grants struct {
	Coarse bool `json:"Coarse" yaml:"coarse"`
	Fine   bool `json:"Fine" yaml:"fine"`
}

// Sufficient reports whether the grants allow reading the position.
func (g Grants) Sufficient() bool {
	return g.Coarse && g.Fine
}

// ParseGrants parses a comma separated grant list such as "coarse,fine".
// Unknown entries are ignored.
func ParseGrants(value string) Grants {
	var g Grants
	for _, part := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "coarse":
			g.Coarse = true
		case "fine":
			g.Fine = true
		}
	}
	return g
}

// Static is an authorizer with fixed grants, set from configuration.
type Static struct {
	Coarse bool
	Fine   bool
}

// HasPositioningAuthorization reports whether both grants are held.
func (s Static) HasPositioningAuthorization(context.Context) bool {
	return Grants{Coarse: s.Coarse, Fine: s.Fine}.Sufficient()
}
