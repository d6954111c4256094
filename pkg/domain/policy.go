package domain

import "fmt"

// OverspendPolicy controls whether a ledger deduction may push spending past
// the allocated amount. It is injected into each evaluation at call time so a
// mid-transition settings change cannot split one decision across two
// policies.
type OverspendPolicy string

const (
	OverspendDisallow OverspendPolicy = "disallow"
	OverspendAllow    OverspendPolicy = "allow"
)

// ParseOverspendPolicy validates and returns an OverspendPolicy.
func ParseOverspendPolicy(s string) (OverspendPolicy, error) {
	switch p := OverspendPolicy(s); p {
	case OverspendDisallow, OverspendAllow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overspend policy: %s", s)
	}
}

func (p OverspendPolicy) String() string { return string(p) }
