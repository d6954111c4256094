package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bursar/pkg/platform/sentinel"
	txcontext "bursar/pkg/platform/tx"
)

// TxRunner runs units of work in serializable transactions. Serializable is
// deliberate: the coordinator's invariants (exactly one deduction, exactly
// one resubmission child, one actionable proposal) depend on concurrent
// attempts aborting rather than interleaving. Aborts surface as
// sentinel.ErrConflict so callers can retry a fresh attempt.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx begins a serializable transaction, makes it visible to stores via
// the context, and commits if fn succeeds. The key argument is only used by
// the in-memory runner.
func (r *TxRunner) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if IsSerializationFailure(err) {
			return fmt.Errorf("transaction aborted by concurrent writer: %w", sentinel.ErrConflict)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsSerializationFailure(err) {
			return fmt.Errorf("commit aborted by concurrent writer: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
