package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
)

const defaultListLimit = 50

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(account_id, amount, type, description, counterparty_account, counterparty_name, resulting_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now().UTC()

	var counterpartyAccount interface{}
	if tx.CounterpartyAccount != nil {
		counterpartyAccount = *tx.CounterpartyAccount
	}
	var counterpartyName interface{}
	if tx.CounterpartyName != "" {
		counterpartyName = tx.CounterpartyName
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		tx.AccountID,
		tx.Amount.String(),
		string(tx.Type),
		tx.Description,
		counterpartyAccount,
		counterpartyName,
		tx.ResultingBalance.String(),
		now,
	).Scan(&tx.ID)

	if err != nil {
		r.logger.Error("failed to append transaction",
			"account_id", tx.AccountID,
			"type", tx.Type,
			"amount", tx.Amount,
			"error", err)
		return apperrors.New(apperrors.InternalError, "failed to append transaction").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	return nil
}

func (r *transactionRepository) ListTransactions(ctx context.Context, accountID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, account_id, amount, type, description, counterparty_account, counterparty_name, resulting_balance, created_at
		FROM transactions
		WHERE account_id = $1
		  AND ($2 = 0 OR id < $2)
		  AND ($3 = '' OR type = $3)
		ORDER BY id DESC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, filter.BeforeID, string(filter.Type), limit)
	if err != nil {
		r.logger.Error("failed to list transactions", "account_id", accountID, "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to list transactions").WithDetails(err.Error())
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to iterate transactions").WithDetails(err.Error())
	}

	return transactions, nil
}

func (r *transactionRepository) scanTransaction(rows *sql.Rows) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var amountStr, resultingStr string
	var txType string
	var counterpartyAccount sql.NullInt64
	var counterpartyName sql.NullString

	err := rows.Scan(
		&transaction.ID,
		&transaction.AccountID,
		&amountStr,
		&txType,
		&transaction.Description,
		&counterpartyAccount,
		&counterpartyName,
		&resultingStr,
		&transaction.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to scan transaction").WithDetails(err.Error())
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to parse amount").WithDetails(err.Error())
	}
	resulting, err := decimal.NewFromString(resultingStr)
	if err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to parse resulting balance").WithDetails(err.Error())
	}

	transaction.Amount = amount
	transaction.ResultingBalance = resulting
	transaction.Type = domain.TransactionType(txType)
	if counterpartyAccount.Valid {
		id := counterpartyAccount.Int64
		transaction.CounterpartyAccount = &id
	}
	if counterpartyName.Valid {
		transaction.CounterpartyName = counterpartyName.String
	}

	return &transaction, nil
}

func (r *transactionRepository) SumAmounts(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions WHERE account_id = $1
	`

	var sumStr string
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&sumStr); err != nil {
		r.logger.Error("failed to sum transactions", "account_id", accountID, "error", err)
		return decimal.Zero, apperrors.New(apperrors.InternalError, "failed to sum transactions").WithDetails(err.Error())
	}

	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, apperrors.New(apperrors.InternalError, "failed to parse transaction sum").WithDetails(err.Error())
	}
	return sum, nil
}
