package expenditure

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bursar/pkg/domain"
)

func step(role domain.Role, decision domain.Decision) domain.ApprovalStep {
	return domain.ApprovalStep{
		ActorID:   domain.NewActorID(),
		ActorRole: role,
		Decision:  decision,
		Timestamp: time.Now(),
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name  string
		steps []domain.ApprovalStep
		want  Status
	}{
		{"no steps is pending", nil, StatusPending},
		{"submitted only", []domain.ApprovalStep{
			step(domain.RoleDepartment, domain.DecisionSubmitted),
		}, StatusPending},
		{"full approval chain", []domain.ApprovalStep{
			step(domain.RoleDepartment, domain.DecisionSubmitted),
			step(domain.RoleHOD, domain.DecisionVerified),
			step(domain.RolePrincipal, domain.DecisionApproved),
			step(domain.RoleOffice, domain.DecisionFinalized),
		}, StatusFinalized},
		{"rejection at verification", []domain.ApprovalStep{
			step(domain.RoleDepartment, domain.DecisionSubmitted),
			step(domain.RoleHOD, domain.DecisionRejected),
		}, StatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.steps))
		})
	}
}

func TestTotalOf(t *testing.T) {
	items := []LineItem{
		{Description: "venue", Amount: decimal.RequireFromString("1200.50")},
		{Description: "catering", Amount: decimal.RequireFromString("799.50")},
	}
	assert.Equal(t, "2000", TotalOf(items).String())
	assert.True(t, TotalOf(nil).IsZero())
}
