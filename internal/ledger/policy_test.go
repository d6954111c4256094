package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bursar/pkg/domain"
)

func TestIsAdmissible(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	cases := []struct {
		name      string
		remaining string
		requested string
		policy    domain.OverspendPolicy
		want      bool
	}{
		{"within headroom", "100.00", "99.99", domain.OverspendDisallow, true},
		{"exactly exhausts", "100.00", "100.00", domain.OverspendDisallow, true},
		{"one paisa over", "100.00", "100.01", domain.OverspendDisallow, false},
		{"nothing left", "0.00", "0.01", domain.OverspendDisallow, false},
		{"allow permits overspend", "0.00", "500.00", domain.OverspendAllow, true},
		{"allow permits negative remaining", "-50.00", "10.00", domain.OverspendAllow, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsAdmissible(d(tc.remaining), d(tc.requested), tc.policy)
			assert.Equal(t, tc.want, got)
		})
	}
}
