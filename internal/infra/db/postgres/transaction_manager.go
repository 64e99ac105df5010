package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"premium-order-sync/internal/domain"
	"premium-order-sync/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// The live pgx.Tx is handed to the callback as repository.Tx.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise.
// Serialization failures and deadlocks surface as domain.ErrConflict.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// getExecutor picks the live tx when one is given and the pool otherwise.
// locked reports whether row locks are meaningful for this executor.
func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (ex executor, locked bool, err error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v, true, nil
	case *pgxpool.Conn:
		return v, false, nil
	case *pgxpool.Pool:
		return v, false, nil
	case nil:
		if pool != nil {
			return pool, false, nil
		}
		return nil, false, fmt.Errorf("%w: no pool for non-transactional call", domain.ErrInvalidArgument)
	default:
		return nil, false, fmt.Errorf("%w: unsupported executor %T", domain.ErrInvalidArgument, tx)
	}
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}
