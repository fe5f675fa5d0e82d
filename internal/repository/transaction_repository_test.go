package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-ledger/internal/domain"
)

func seedAccount(t *testing.T, store *Store, balance string) *domain.Account {
	t.Helper()
	account, err := store.Account().CreateAccount(context.Background(), uuid.New(), mustDecimal(t, balance), "USD")
	require.NoError(t, err)
	return account
}

func appendEntry(t *testing.T, store *Store, accountID int64, amount, resulting string, txType domain.TransactionType) *domain.Transaction {
	t.Helper()
	entry := &domain.Transaction{
		AccountID:        accountID,
		Amount:           mustDecimal(t, amount),
		Type:             txType,
		Description:      "test entry",
		ResultingBalance: mustDecimal(t, resulting),
	}
	require.NoError(t, store.Transaction().AppendTransaction(context.Background(), entry))
	return entry
}

func TestTransactionRepository_AppendTransaction(t *testing.T) {
	store := newTestStore(t)
	account := seedAccount(t, store, "0")

	first := appendEntry(t, store, account.ID, "25.00", "25.00", domain.TypeDeposit)
	second := appendEntry(t, store, account.ID, "-10.00", "15.00", domain.TypeWithdrawal)

	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID, "ids must be strictly increasing in creation order")
	assert.False(t, first.CreatedAt.IsZero())
}

func TestTransactionRepository_ListTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := seedAccount(t, store, "0")

	appendEntry(t, store, account.ID, "100.00", "100.00", domain.TypeDeposit)
	appendEntry(t, store, account.ID, "-40.00", "60.00", domain.TypeWithdrawal)
	appendEntry(t, store, account.ID, "0.01", "60.01", domain.TypeDailyInterest)

	t.Run("newest first", func(t *testing.T) {
		entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, domain.TypeDailyInterest, entries[0].Type)
		assert.Equal(t, domain.TypeDeposit, entries[2].Type)
	})

	t.Run("type filter", func(t *testing.T) {
		entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{Type: domain.TypeWithdrawal})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(mustDecimal(t, "-40.00")))
	})

	t.Run("cursor pagination", func(t *testing.T) {
		page1, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page1, 2)

		page2, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{Limit: 2, BeforeID: page1[1].ID})
		require.NoError(t, err)
		require.Len(t, page2, 1)
		assert.Less(t, page2[0].ID, page1[1].ID)
	})

	t.Run("other account invisible", func(t *testing.T) {
		other := seedAccount(t, store, "0")
		entries, err := store.Transaction().ListTransactions(ctx, other.ID, domain.TransactionFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestTransactionRepository_CounterpartyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := seedAccount(t, store, "0")
	other := seedAccount(t, store, "0")

	entry := &domain.Transaction{
		AccountID:           account.ID,
		Amount:              mustDecimal(t, "-50.00"),
		Type:                domain.TypeTransferOut,
		Description:         "rent",
		CounterpartyAccount: &other.ID,
		CounterpartyName:    "J. Doe",
		ResultingBalance:    mustDecimal(t, "0.00"),
	}
	require.NoError(t, store.Transaction().AppendTransaction(ctx, entry))

	entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].CounterpartyAccount)
	assert.Equal(t, other.ID, *entries[0].CounterpartyAccount)
	assert.Equal(t, "J. Doe", entries[0].CounterpartyName)
}

func TestTransactionRepository_SumAmounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	account := seedAccount(t, store, "0")

	sum, err := store.Transaction().SumAmounts(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.Zero))

	appendEntry(t, store, account.ID, "100.00", "100.00", domain.TypeDeposit)
	appendEntry(t, store, account.ID, "-33.33", "66.67", domain.TypeWithdrawal)

	sum, err = store.Transaction().SumAmounts(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(mustDecimal(t, "66.67")), "got %s", sum)
}
