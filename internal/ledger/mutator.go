// Package ledger implements the atomic balance mutator: the single entry
// point for every balance change. Each mutation locks the account row, writes
// the new balance and appends one immutable ledger entry inside one database
// transaction, so a partial application is never observable.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/money"
	"bank-ledger/internal/repository"
)

// Change describes one requested balance mutation. Amount is signed:
// positive credits the account, negative debits it.
type Change struct {
	AccountID           int64
	Amount              decimal.Decimal
	Type                domain.TransactionType
	Description         string
	CounterpartyAccount *int64
	CounterpartyName    string
}

// Result is returned to the caller after a committed mutation.
type Result struct {
	NewBalance    decimal.Decimal
	TransactionID int64
}

// TransferResult carries both committed legs of a transfer.
type TransferResult struct {
	OutTransaction *domain.Transaction
	InTransaction  *domain.Transaction
	SourceBalance  decimal.Decimal
	DestBalance    decimal.Decimal
}

type Mutator struct {
	store   *repository.Store
	logger  *slog.Logger
	retries int
	backoff time.Duration
}

func NewMutator(store *repository.Store, logger *slog.Logger, retries int) *Mutator {
	if retries < 0 {
		retries = 0
	}
	return &Mutator{
		store:   store,
		logger:  logger,
		retries: retries,
		backoff: 50 * time.Millisecond,
	}
}

// Apply executes one balance change as a single row-locked database
// transaction. Concurrency conflicts are retried with backoff up to the
// configured count before being surfaced to the caller.
func (m *Mutator) Apply(ctx context.Context, change Change) (*Result, error) {
	if err := validateChange(change); err != nil {
		return nil, err
	}

	var result *Result
	err := m.withRetry(ctx, func() error {
		return m.store.WithTransaction(ctx, func(txStore *repository.Store) error {
			account, err := txStore.Account().GetAccountForUpdate(ctx, change.AccountID)
			if err != nil {
				return err
			}
			r, err := applyLocked(ctx, txStore, account, change)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("balance change applied",
		"account_id", change.AccountID,
		"type", change.Type,
		"amount", change.Amount,
		"new_balance", result.NewBalance,
		"transaction_id", result.TransactionID)
	return result, nil
}

// Transfer moves amount from one account to another. Both legs run inside
// one outer transaction: the rows are locked in ascending account-id order to
// rule out lock-ordering deadlocks, then the debit and credit are applied.
// Either both legs commit or neither does.
func (m *Mutator) Transfer(ctx context.Context, sourceID, destID int64, amount decimal.Decimal, description string) (*TransferResult, error) {
	if sourceID == destID {
		return nil, apperrors.New(apperrors.InvalidInput, "cannot transfer to the same account")
	}
	if amount.Sign() <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	var result *TransferResult
	err := m.withRetry(ctx, func() error {
		return m.store.WithTransaction(ctx, func(txStore *repository.Store) error {
			accounts, err := lockPair(ctx, txStore, sourceID, destID)
			if err != nil {
				return err
			}
			source, dest := accounts[sourceID], accounts[destID]

			outRes, err := applyLocked(ctx, txStore, source, Change{
				AccountID:           sourceID,
				Amount:              amount.Neg(),
				Type:                domain.TypeTransferOut,
				Description:         description,
				CounterpartyAccount: &destID,
			})
			if err != nil {
				return err
			}

			inRes, err := applyLocked(ctx, txStore, dest, Change{
				AccountID:           destID,
				Amount:              amount,
				Type:                domain.TypeTransferIn,
				Description:         description,
				CounterpartyAccount: &sourceID,
			})
			if err != nil {
				return err
			}

			result = &TransferResult{
				OutTransaction: &domain.Transaction{
					ID:                  outRes.TransactionID,
					AccountID:           sourceID,
					Amount:              amount.Neg(),
					Type:                domain.TypeTransferOut,
					Description:         description,
					CounterpartyAccount: &destID,
					ResultingBalance:    outRes.NewBalance,
				},
				InTransaction: &domain.Transaction{
					ID:                  inRes.TransactionID,
					AccountID:           destID,
					Amount:              amount,
					Type:                domain.TypeTransferIn,
					Description:         description,
					CounterpartyAccount: &sourceID,
					ResultingBalance:    inRes.NewBalance,
				},
				SourceBalance: outRes.NewBalance,
				DestBalance:   inRes.NewBalance,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("transfer completed",
		"source_account_id", sourceID,
		"destination_account_id", destID,
		"amount", amount,
		"out_transaction_id", result.OutTransaction.ID,
		"in_transaction_id", result.InTransaction.ID)
	return result, nil
}

// lockPair locks both account rows in ascending id order and returns them
// keyed by id.
func lockPair(ctx context.Context, txStore *repository.Store, a, b int64) (map[int64]*domain.Account, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	accounts := make(map[int64]*domain.Account, 2)
	for _, id := range []int64{first, second} {
		account, err := txStore.Account().GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

// applyLocked performs the mutation steps against an account whose row is
// already locked in txStore's transaction: compute the candidate balance,
// reject debits that would go negative, write the balance, append the entry.
func applyLocked(ctx context.Context, txStore *repository.Store, account *domain.Account, change Change) (*Result, error) {
	candidate := money.Round2(account.Balance.Add(change.Amount))

	if change.Amount.Sign() < 0 && candidate.Sign() < 0 {
		return nil, apperrors.ErrInsufficientFunds.WithDetails(
			fmt.Sprintf("balance %s, requested %s", account.Balance, change.Amount.Abs()))
	}

	if err := txStore.Account().UpdateAccountBalance(ctx, account.ID, candidate); err != nil {
		return nil, err
	}

	entry := &domain.Transaction{
		AccountID:           account.ID,
		Amount:              money.Round2(change.Amount),
		Type:                change.Type,
		Description:         change.Description,
		CounterpartyAccount: change.CounterpartyAccount,
		CounterpartyName:    change.CounterpartyName,
		ResultingBalance:    candidate,
	}
	if err := txStore.Transaction().AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}

	// Keep the in-memory copy current so a second leg in the same outer
	// transaction sees the committed-to-be balance.
	account.Balance = candidate

	return &Result{
		NewBalance:    candidate,
		TransactionID: entry.ID,
	}, nil
}

// withRetry runs fn, retrying on concurrency conflicts with linear backoff.
func (m *Mutator) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !apperrors.Is(err, apperrors.ConcurrencyConflict) || attempt >= m.retries {
			return err
		}

		m.logger.Warn("mutation conflicted, retrying",
			"attempt", attempt+1,
			"max_retries", m.retries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt+1)):
		}
	}
}

func validateChange(change Change) error {
	if change.Amount.IsZero() {
		return apperrors.ErrInvalidAmount
	}
	if !change.Type.Valid() {
		return apperrors.Newf(apperrors.InvalidInput, "unknown transaction type %q", change.Type)
	}
	return nil
}
