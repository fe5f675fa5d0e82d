// Package domain defines the ledger entities and the repository contracts
// implemented by the persistence layer.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID        int64           `json:"account_id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountBalance is the minimal projection the accrual job iterates over.
type AccountBalance struct {
	ID      int64
	Balance decimal.Decimal
}

type AccountRepository interface {
	// CreateAccount inserts a new account for the owner. Each owner holds at
	// most one account; a second insert fails with a duplicate error.
	CreateAccount(ctx context.Context, ownerID uuid.UUID, initialBalance decimal.Decimal, currency string) (*Account, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*Account, error)
	// GetAccountForUpdate reads the account under an exclusive row lock and
	// must only be called inside a store transaction.
	GetAccountForUpdate(ctx context.Context, id int64) (*Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error
	// ListPositiveBalances returns id and balance for every account with
	// balance > 0, ascending by id.
	ListPositiveBalances(ctx context.Context) ([]AccountBalance, error)
}
