package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/requestcontext"
)

// InMemoryStore is the test and single-process implementation. The mutex
// makes the check-and-increment in TryDeduct atomic, mirroring the
// conditional UPDATE of the postgres store.
type InMemoryStore struct {
	mu          sync.RWMutex
	allocations map[Key]*Allocation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{allocations: make(map[Key]*Allocation)}
}

func (s *InMemoryStore) TryDeduct(ctx context.Context, key Key, amount decimal.Decimal, policy domain.OverspendPolicy) (*DeductResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alloc, ok := s.allocations[key]
	if !ok || alloc.Status != AllocationActive {
		return nil, sentinel.ErrNotFound
	}
	newSpent := alloc.SpentAmount.Add(amount)
	if policy == domain.OverspendDisallow && newSpent.GreaterThan(alloc.AllocatedAmount) {
		return nil, sentinel.ErrDenied
	}
	alloc.SpentAmount = newSpent
	alloc.UpdatedAt = requestcontext.Now(ctx)
	return &DeductResult{NewSpent: newSpent, Allocated: alloc.AllocatedAmount}, nil
}

func (s *InMemoryStore) CreateIfAbsent(ctx context.Context, alloc Allocation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.allocations[alloc.Key]; ok {
		return false, nil
	}
	if alloc.ID.IsNil() {
		alloc.ID = domain.NewAllocationID()
	}
	if alloc.Status == "" {
		alloc.Status = AllocationActive
	}
	now := requestcontext.Now(ctx)
	alloc.CreatedAt = now
	alloc.UpdatedAt = now
	copied := alloc
	s.allocations[alloc.Key] = &copied
	return true, nil
}

func (s *InMemoryStore) Find(_ context.Context, key Key) (*Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alloc, ok := s.allocations[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *alloc
	return &copied, nil
}

func (s *InMemoryStore) ListByDepartment(_ context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Allocation
	for key, alloc := range s.allocations {
		if key.Department == dept && key.FinancialYear == fy {
			out = append(out, *alloc)
		}
	}
	return out, nil
}
