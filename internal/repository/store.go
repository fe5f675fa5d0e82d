package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
)

// Postgres error codes the ledger cares about.
const (
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// Store provides a unified interface for all repository operations with
// transaction support. A Store built by WithTransaction shares one sql.Tx
// across every repository it hands out.
type Store struct {
	executor    SQLExecutor
	db          DB
	logger      *slog.Logger
	lockTimeout time.Duration
}

// NewStore creates a new Store instance
func NewStore(db *sql.DB, logger *slog.Logger, lockTimeout time.Duration) *Store {
	return &Store{
		executor:    db,
		db:          db,
		logger:      logger,
		lockTimeout: lockTimeout,
	}
}

// Account returns an AccountRepository using the current executor
func (s *Store) Account() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Transaction returns a TransactionRepository using the current executor
func (s *Store) Transaction() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

// Calculation returns a CalculationRepository using the current executor
func (s *Store) Calculation() domain.CalculationRepository {
	return NewCalculationRepository(s.executor, s.logger)
}

// WithTransaction executes fn inside one database transaction. A lock_timeout
// is set on the transaction so a mutation blocked on a row lock fails with a
// concurrency conflict instead of waiting unboundedly. On any error the whole
// transaction rolls back.
func (s *Store) WithTransaction(ctx context.Context, fn func(txStore *Store) error) error {
	if s.db == nil {
		return apperrors.New(apperrors.InternalError, "store is already transactional")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if s.lockTimeout > 0 {
		timeoutMs := s.lockTimeout.Milliseconds()
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeoutMs)); err != nil {
			tx.Rollback()
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	txStore := &Store{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return mapConcurrencyError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapConcurrencyError(err)
	}
	return nil
}

// mapConcurrencyError translates lock-contention driver errors into the
// retryable concurrency_conflict code. Other errors pass through unchanged.
func mapConcurrencyError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return apperrors.ErrConcurrencyConflict.WithDetails(pqErr.Message)
		}
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
