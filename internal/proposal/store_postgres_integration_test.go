//go:build integration

package proposal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bursar/internal/proposal"
	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	ctx   context.Context
	pool  *pgxpool.Pool
	store *proposal.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	s := &PostgresStoreSuite{}
	s.pool = containers.StartPostgres(t)
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = proposal.NewPostgresStore(s.pool)
}

func (s *PostgresStoreSuite) draft(dept domain.DepartmentID) *proposal.Proposal {
	items := []proposal.Item{
		{BudgetHead: "lab-equipment", ProposedAmount: decimal.RequireFromString("10000.00"), Justification: "aging microscopes"},
		{BudgetHead: "library-books", ProposedAmount: decimal.RequireFromString("2500.50")},
	}
	return &proposal.Proposal{
		ID:            domain.NewProposalID(),
		Department:    dept,
		FinancialYear: "2026-2027",
		Items:         items,
		TotalProposed: proposal.TotalOf(items),
		Status:        proposal.StatusDraft,
		SubmittedBy:   domain.NewActorID(),
	}
}

func (s *PostgresStoreSuite) step(role domain.Role, decision domain.Decision) domain.ApprovalStep {
	return domain.ApprovalStep{
		ActorID:   domain.NewActorID(),
		ActorRole: role,
		Decision:  decision,
		Timestamp: time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	p := s.draft(domain.NewDepartmentID())
	s.Require().NoError(s.store.Create(s.ctx, p))

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal(p.Department, got.Department)
	s.Equal(proposal.StatusDraft, got.Status)
	s.Require().Len(got.Items, 2)
	s.Equal("10000", got.Items[0].ProposedAmount.String())
	s.Equal("aging microscopes", got.Items[0].Justification)
	s.True(got.TotalProposed.Equal(decimal.RequireFromString("12500.50")))
	s.Empty(got.Steps)
}

func (s *PostgresStoreSuite) TestOneActionablePerCycle() {
	dept := domain.NewDepartmentID()
	first := s.draft(dept)
	s.Require().NoError(s.store.Create(s.ctx, first))

	s.Run("second actionable draft violates the partial index", func() {
		err := s.store.Create(s.ctx, s.draft(dept))
		s.True(errors.Is(err, sentinel.ErrAlreadyExists))
	})

	s.Run("a rejected proposal frees the cycle", func() {
		s.Require().NoError(s.store.UpdateStatus(s.ctx, first.ID, proposal.StatusDraft, proposal.StatusSubmitted,
			s.step(domain.RoleHOD, domain.DecisionSubmitted)))
		s.Require().NoError(s.store.UpdateStatus(s.ctx, first.ID, proposal.StatusSubmitted, proposal.StatusRejected,
			s.step(domain.RolePrincipal, domain.DecisionRejected)))

		s.NoError(s.store.Create(s.ctx, s.draft(dept)))
	})
}

func (s *PostgresStoreSuite) TestResubmissionLinkIsUnique() {
	dept := domain.NewDepartmentID()
	original := s.draft(dept)
	s.Require().NoError(s.store.Create(s.ctx, original))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, original.ID, proposal.StatusDraft, proposal.StatusSubmitted,
		s.step(domain.RoleHOD, domain.DecisionSubmitted)))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, original.ID, proposal.StatusSubmitted, proposal.StatusRejected,
		s.step(domain.RolePrincipal, domain.DecisionRejected)))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, original.ID, proposal.StatusRejected, proposal.StatusRevised,
		s.step(domain.RoleHOD, domain.DecisionRevised)))

	child := s.draft(dept)
	child.IsResubmission = true
	child.OriginalID = &original.ID
	s.Require().NoError(s.store.Create(s.ctx, child))

	has, err := s.store.HasResubmission(s.ctx, original.ID)
	s.Require().NoError(err)
	s.True(has)

	// Reject the child so the cycle is free again; the unique original id
	// must still refuse a second link.
	s.Require().NoError(s.store.UpdateStatus(s.ctx, child.ID, proposal.StatusDraft, proposal.StatusSubmitted,
		s.step(domain.RoleHOD, domain.DecisionSubmitted)))
	s.Require().NoError(s.store.UpdateStatus(s.ctx, child.ID, proposal.StatusSubmitted, proposal.StatusRejected,
		s.step(domain.RolePrincipal, domain.DecisionRejected)))

	second := s.draft(dept)
	second.IsResubmission = true
	second.OriginalID = &original.ID
	err = s.store.Create(s.ctx, second)
	s.True(errors.Is(err, sentinel.ErrAlreadyExists))
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	p := s.draft(domain.NewDepartmentID())
	s.Require().NoError(s.store.Create(s.ctx, p))

	s.Run("stale from-status conflicts", func() {
		err := s.store.UpdateStatus(s.ctx, p.ID, proposal.StatusSubmitted, proposal.StatusVerifiedByHOD,
			s.step(domain.RoleHOD, domain.DecisionVerified))
		s.True(errors.Is(err, sentinel.ErrConflict))
	})

	s.Run("unknown id is not found", func() {
		err := s.store.UpdateStatus(s.ctx, domain.NewProposalID(), proposal.StatusDraft, proposal.StatusSubmitted,
			s.step(domain.RoleHOD, domain.DecisionSubmitted))
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("steps accumulate with monotonic seq", func() {
		s.Require().NoError(s.store.UpdateStatus(s.ctx, p.ID, proposal.StatusDraft, proposal.StatusSubmitted,
			s.step(domain.RoleHOD, domain.DecisionSubmitted)))
		s.Require().NoError(s.store.UpdateStatus(s.ctx, p.ID, proposal.StatusSubmitted, proposal.StatusVerifiedByHOD,
			s.step(domain.RoleHOD, domain.DecisionVerified)))

		got, err := s.store.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(got.Steps, 2)
		s.Equal(1, got.Steps[0].Seq)
		s.Equal(2, got.Steps[1].Seq)
		s.Equal(proposal.StatusVerifiedByHOD, got.Status)
	})
}

func (s *PostgresStoreSuite) TestMarkRead() {
	p := s.draft(domain.NewDepartmentID())
	s.Require().NoError(s.store.Create(s.ctx, p))

	reader := domain.NewActorID()
	s.Require().NoError(s.store.MarkRead(s.ctx, p.ID, reader))
	s.Require().NoError(s.store.MarkRead(s.ctx, p.ID, reader), "reads are idempotent")

	got, err := s.store.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(got.ReadBy, 1)
	s.Equal(reader, got.ReadBy[0])

	err = s.store.MarkRead(s.ctx, domain.NewProposalID(), reader)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
