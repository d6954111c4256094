package expenditure

import (
	"context"
	"sync"

	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/requestcontext"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	expenditures map[domain.ExpenditureID]*Expenditure
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{expenditures: make(map[domain.ExpenditureID]*Expenditure)}
}

func (s *InMemoryStore) Create(ctx context.Context, e *Expenditure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenditures[e.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	if e.OriginalID != nil {
		for _, other := range s.expenditures {
			if other.OriginalID != nil && *other.OriginalID == *e.OriginalID {
				return sentinel.ErrAlreadyExists
			}
		}
	}
	now := requestcontext.Now(ctx)
	e.CreatedAt = now
	e.UpdatedAt = now
	for i := range e.Steps {
		e.Steps[i].Seq = i + 1
	}
	copied := cloneExpenditure(e)
	s.expenditures[e.ID] = copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ExpenditureID) (*Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenditures[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneExpenditure(e), nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id domain.ExpenditureID, from, to Status, step domain.ApprovalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenditures[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.Status != from {
		return sentinel.ErrConflict
	}
	step.Seq = len(e.Steps) + 1
	e.Steps = append(e.Steps, step)
	e.Status = to
	e.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) HasResubmission(_ context.Context, id domain.ExpenditureID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.expenditures {
		if e.OriginalID != nil && *e.OriginalID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ListByDepartment(_ context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Expenditure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Expenditure
	for _, e := range s.expenditures {
		if e.Department == dept && e.FinancialYear == fy {
			out = append(out, *cloneExpenditure(e))
		}
	}
	return out, nil
}

func cloneExpenditure(e *Expenditure) *Expenditure {
	copied := *e
	copied.Items = append([]LineItem(nil), e.Items...)
	copied.Steps = append([]domain.ApprovalStep(nil), e.Steps...)
	if e.OriginalID != nil {
		orig := *e.OriginalID
		copied.OriginalID = &orig
	}
	return &copied
}
