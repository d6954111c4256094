//go:build integration

package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bursar/internal/ledger"
	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	ctx   context.Context
	pool  *pgxpool.Pool
	store *ledger.PostgresStore
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
	s.store = ledger.NewPostgresStore(s.pool)
}

func (s *PostgresStoreSuite) newKey() ledger.Key {
	return ledger.Key{
		Department:    domain.NewDepartmentID(),
		BudgetHead:    "laboratory-consumables",
		FinancialYear: "2025-2026",
	}
}

func (s *PostgresStoreSuite) seed(key ledger.Key, allocated string) {
	created, err := s.store.CreateIfAbsent(s.ctx, ledger.Allocation{
		Key:             key,
		AllocatedAmount: decimal.RequireFromString(allocated),
		SpentAmount:     decimal.Zero,
		Status:          ledger.AllocationActive,
		CreatedBy:       domain.NewActorID(),
	})
	s.Require().NoError(err)
	s.Require().True(created)
}

func (s *PostgresStoreSuite) TestTryDeduct() {
	s.Run("deducts within headroom", func() {
		key := s.newKey()
		s.seed(key, "1000.00")

		res, err := s.store.TryDeduct(s.ctx, key, decimal.RequireFromString("400.00"), domain.OverspendDisallow)
		s.Require().NoError(err)
		s.Equal("400", res.NewSpent.String())
		s.Equal("600", res.Remaining().String())
	})

	s.Run("denies past the allocation under disallow", func() {
		key := s.newKey()
		s.seed(key, "100.00")

		_, err := s.store.TryDeduct(s.ctx, key, decimal.RequireFromString("100.01"), domain.OverspendDisallow)
		s.Require().Error(err)
		s.True(errors.Is(err, sentinel.ErrDenied))

		alloc, err := s.store.Find(s.ctx, key)
		s.Require().NoError(err)
		s.True(alloc.SpentAmount.IsZero())
	})

	s.Run("allows past the allocation under allow", func() {
		key := s.newKey()
		s.seed(key, "100.00")

		res, err := s.store.TryDeduct(s.ctx, key, decimal.RequireFromString("150.00"), domain.OverspendAllow)
		s.Require().NoError(err)
		s.True(res.Remaining().IsNegative())
	})

	s.Run("not found for a missing allocation", func() {
		_, err := s.store.TryDeduct(s.ctx, s.newKey(), decimal.New(1, 0), domain.OverspendDisallow)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

// The conditional UPDATE is the binding overspend check: under real
// concurrency exactly one of two jointly-overspending deductions lands.
func (s *PostgresStoreSuite) TestTryDeductConcurrent() {
	key := s.newKey()
	s.seed(key, "1000.00")
	amount := decimal.RequireFromString("600.00")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.store.TryDeduct(s.ctx, key, amount, domain.OverspendDisallow)
		}(i)
	}
	wg.Wait()

	var ok, denied int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, sentinel.ErrDenied):
			denied++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, denied)

	alloc, err := s.store.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("600", alloc.SpentAmount.String())
}

func (s *PostgresStoreSuite) TestCreateIfAbsent() {
	key := s.newKey()
	s.seed(key, "500.00")

	created, err := s.store.CreateIfAbsent(s.ctx, ledger.Allocation{
		Key:             key,
		AllocatedAmount: decimal.RequireFromString("9999.00"),
		Status:          ledger.AllocationActive,
		CreatedBy:       domain.NewActorID(),
	})
	s.Require().NoError(err)
	s.False(created, "ON CONFLICT DO NOTHING must swallow the duplicate")

	alloc, err := s.store.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("500", alloc.AllocatedAmount.String())
}

func (s *PostgresStoreSuite) TestFindAndList() {
	key := s.newKey()
	s.seed(key, "500.00")

	other := key
	other.BudgetHead = "sports-equipment"
	s.seed(other, "200.00")

	alloc, err := s.store.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(key, alloc.Key)
	s.Equal(ledger.AllocationActive, alloc.Status)
	s.False(alloc.ID.IsNil())

	out, err := s.store.ListByDepartment(s.ctx, key.Department, key.FinancialYear)
	s.Require().NoError(err)
	s.Len(out, 2)

	_, err = s.store.Find(s.ctx, ledger.Key{
		Department:    domain.NewDepartmentID(),
		BudgetHead:    key.BudgetHead,
		FinancialYear: key.FinancialYear,
	})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
