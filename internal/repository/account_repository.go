package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
)

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewAccountRepository(db SQLExecutor, logger *slog.Logger) domain.AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) CreateAccount(ctx context.Context, ownerID uuid.UUID, initialBalance decimal.Decimal, currency string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (owner_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`

	now := time.Now().UTC()
	account := &domain.Account{
		OwnerID:   ownerID,
		Balance:   initialBalance,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.QueryRowContext(ctx, query, ownerID, initialBalance.String(), currency, now).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err, "accounts_owner_id_key") {
			r.logger.Warn("duplicate account creation attempt", "owner_id", ownerID)
			return nil, apperrors.ErrDuplicateAccount
		}
		r.logger.Error("failed to create account", "owner_id", ownerID, "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to create account").WithDetails(err.Error())
	}

	r.logger.Info("account created", "account_id", account.ID, "owner_id", ownerID)
	return account, nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, balance, currency, created_at, updated_at
		FROM accounts WHERE id = $1
	`

	return r.scanAccount(ctx, query, id)
}

func (r *accountRepository) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, balance, currency, created_at, updated_at
		FROM accounts WHERE owner_id = $1
	`

	return r.scanAccount(ctx, query, ownerID)
}

func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, balance, currency, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE
	`

	return r.scanAccount(ctx, query, id)
}

func (r *accountRepository) scanAccount(ctx context.Context, query string, arg interface{}) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.OwnerID,
		&balanceStr,
		&account.Currency,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrAccountNotFound
		}
		if mapped := mapConcurrencyError(err); mapped != err {
			return nil, mapped
		}
		r.logger.Error("failed to get account", "arg", arg, "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to get account").WithDetails(err.Error())
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		r.logger.Error("failed to parse balance", "account_id", account.ID, "balance_str", balanceStr, "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to parse balance").WithDetails(err.Error())
	}

	account.Balance = balance
	return &account, nil
}

func (r *accountRepository) UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, newBalance.String(), time.Now().UTC(), id)
	if err != nil {
		if mapped := mapConcurrencyError(err); mapped != err {
			return mapped
		}
		r.logger.Error("failed to update account balance", "account_id", id, "error", err)
		return apperrors.New(apperrors.InternalError, "failed to update account balance").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.New(apperrors.InternalError, "failed to get rows affected").WithDetails(err.Error())
	}
	if rowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) ListPositiveBalances(ctx context.Context) ([]domain.AccountBalance, error) {
	query := `
		SELECT id, balance
		FROM accounts WHERE balance > 0
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list positive balances", "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to list accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	var balances []domain.AccountBalance
	for rows.Next() {
		var ab domain.AccountBalance
		var balanceStr string
		if err := rows.Scan(&ab.ID, &balanceStr); err != nil {
			return nil, apperrors.New(apperrors.InternalError, "failed to scan account balance").WithDetails(err.Error())
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, apperrors.New(apperrors.InternalError, "failed to parse balance").WithDetails(err.Error())
		}
		ab.Balance = balance
		balances = append(balances, ab)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to iterate accounts").WithDetails(err.Error())
	}

	return balances, nil
}
