package proposal

import (
	"context"
	"sync"

	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/requestcontext"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[domain.ProposalID]*Proposal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{proposals: make(map[domain.ProposalID]*Proposal)}
}

func (s *InMemoryStore) Create(ctx context.Context, p *Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	for _, other := range s.proposals {
		if other.Department == p.Department && other.FinancialYear == p.FinancialYear &&
			other.Status != StatusRejected && other.Status != StatusRevised {
			return sentinel.ErrAlreadyExists
		}
		if p.OriginalID != nil && other.OriginalID != nil && *other.OriginalID == *p.OriginalID {
			return sentinel.ErrAlreadyExists
		}
	}
	now := requestcontext.Now(ctx)
	p.CreatedAt = now
	p.UpdatedAt = now
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ProposalID) (*Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProposal(p), nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id domain.ProposalID, from, to Status, step domain.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Status != from {
		return sentinel.ErrConflict
	}
	step.Seq = len(p.Steps) + 1
	p.Steps = append(p.Steps, step)
	p.Status = to
	p.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, id domain.ProposalID, actor domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !p.HasRead(actor) {
		p.ReadBy = append(p.ReadBy, actor)
	}
	return nil
}

func (s *InMemoryStore) HasResubmission(_ context.Context, id domain.ProposalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.proposals {
		if p.OriginalID != nil && *p.OriginalID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListByDepartment(_ context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Proposal
	for _, p := range s.proposals {
		if p.Department == dept && p.FinancialYear == fy {
			out = append(out, *cloneProposal(p))
		}
	}
	return out, nil
}

func cloneProposal(p *Proposal) *Proposal {
	copied := *p
	copied.Items = append([]Item(nil), p.Items...)
	copied.Steps = append([]domain.ApprovalStep(nil), p.Steps...)
	copied.ReadBy = append([]domain.ActorID(nil), p.ReadBy...)
	if p.OriginalID != nil {
		orig := *p.OriginalID
		copied.OriginalID = &orig
	}
	return &copied
}
