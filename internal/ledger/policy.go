package ledger

import (
	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
)

// IsAdmissible decides whether a proposed spend fits the overspend policy.
// Pure function of its inputs; the policy value is passed in at call time so
// a settings change mid-transition cannot produce two different answers
// within one transition.
//
// It is consulted twice in an expenditure's life: advisorily at submission
// (the answer may be stale by finalization) and authoritatively inside the
// atomic deduction at finalization.
func IsAdmissible(remaining, requested decimal.Decimal, policy domain.OverspendPolicy) bool {
	if policy == domain.OverspendAllow {
		return true
	}
	return requested.LessThanOrEqual(remaining)
}
