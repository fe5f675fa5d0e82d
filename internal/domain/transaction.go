package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tags every ledger entry with the operation that produced it.
type TransactionType string

const (
	TypeDeposit       TransactionType = "deposit"
	TypeWithdrawal    TransactionType = "withdrawal"
	TypeTransferIn    TransactionType = "transfer_in"
	TypeTransferOut   TransactionType = "transfer_out"
	TypeDailyInterest TransactionType = "daily_interest"
	TypeAdminCredit   TransactionType = "admin_credit"
	TypeAdminDebit    TransactionType = "admin_debit"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransferIn, TypeTransferOut,
		TypeDailyInterest, TypeAdminCredit, TypeAdminDebit:
		return true
	}
	return false
}

// Transaction is one immutable ledger entry. Amount is signed: positive
// credits the account, negative debits it. ResultingBalance snapshots the
// account balance immediately after the entry was applied.
type Transaction struct {
	ID                  int64           `json:"transaction_id"`
	AccountID           int64           `json:"account_id"`
	Amount              decimal.Decimal `json:"amount"`
	Type                TransactionType `json:"type"`
	Description         string          `json:"description"`
	CounterpartyAccount *int64          `json:"counterparty_account,omitempty"`
	CounterpartyName    string          `json:"counterparty_name,omitempty"`
	ResultingBalance    decimal.Decimal `json:"resulting_balance"`
	CreatedAt           time.Time       `json:"created_at"`
}

// TransactionFilter narrows and pages a transaction listing. BeforeID is a
// cursor: only entries with id < BeforeID are returned, newest first.
type TransactionFilter struct {
	Type     TransactionType
	BeforeID int64
	Limit    int
}

type TransactionRepository interface {
	// AppendTransaction inserts the entry and fills in its generated ID and
	// CreatedAt. Entries are never updated or deleted.
	AppendTransaction(ctx context.Context, tx *Transaction) error
	// ListTransactions returns entries for the account ordered by id
	// descending, honoring the filter's type, cursor and limit.
	ListTransactions(ctx context.Context, accountID int64, filter TransactionFilter) ([]Transaction, error)
	// SumAmounts returns the sum of all entry amounts for the account.
	SumAmounts(ctx context.Context, accountID int64) (decimal.Decimal, error)
}
