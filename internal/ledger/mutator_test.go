package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/db"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/repository"
)

func newTestMutator(t *testing.T) (*Mutator, *repository.Store) {
	t.Helper()
	database := db.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(database, logger, 5*time.Second)
	return NewMutator(store, logger, 3), store
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seedAccount(t *testing.T, store *repository.Store, balance string) *domain.Account {
	t.Helper()
	account, err := store.Account().CreateAccount(context.Background(), uuid.New(), mustDecimal(t, balance), "USD")
	require.NoError(t, err)
	return account
}

// requireLedgerConsistent checks the core invariant: the account balance
// equals the sum of its ledger entry amounts plus the seeded opening balance.
func requireLedgerConsistent(t *testing.T, store *repository.Store, accountID int64, opening string) {
	t.Helper()
	ctx := context.Background()

	account, err := store.Account().GetAccount(ctx, accountID)
	require.NoError(t, err)

	sum, err := store.Transaction().SumAmounts(ctx, accountID)
	require.NoError(t, err)

	expected := mustDecimal(t, opening).Add(sum)
	require.True(t, account.Balance.Equal(expected),
		"balance %s != opening %s + ledger sum %s", account.Balance, opening, sum)
}

func TestMutator_ApplyDeposit(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "0")

	result, err := mutator.Apply(ctx, Change{
		AccountID:   account.ID,
		Amount:      mustDecimal(t, "100.00"),
		Type:        domain.TypeDeposit,
		Description: "payroll",
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(mustDecimal(t, "100.00")))
	assert.Positive(t, result.TransactionID)

	entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TypeDeposit, entries[0].Type)
	assert.Equal(t, "payroll", entries[0].Description)
	assert.True(t, entries[0].ResultingBalance.Equal(mustDecimal(t, "100.00")))

	requireLedgerConsistent(t, store, account.ID, "0")
}

func TestMutator_ApplyRejectsOverdraft(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "30.00")

	_, err := mutator.Apply(ctx, Change{
		AccountID:   account.ID,
		Amount:      mustDecimal(t, "-30.01"),
		Type:        domain.TypeWithdrawal,
		Description: "ATM",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.InsufficientFunds, apperrors.CodeOf(err))

	// No partial effect: no ledger row, no balance change.
	entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := store.Account().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(mustDecimal(t, "30.00")))
}

func TestMutator_ApplyExactBalanceWithdrawal(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "30.00")

	result, err := mutator.Apply(ctx, Change{
		AccountID:   account.ID,
		Amount:      mustDecimal(t, "-30.00"),
		Type:        domain.TypeWithdrawal,
		Description: "closing out",
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.IsZero())
}

func TestMutator_ApplyValidation(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "10.00")

	_, err := mutator.Apply(ctx, Change{
		AccountID: account.ID,
		Amount:    decimal.Zero,
		Type:      domain.TypeDeposit,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidAmount, apperrors.CodeOf(err))

	_, err = mutator.Apply(ctx, Change{
		AccountID: account.ID,
		Amount:    mustDecimal(t, "1.00"),
		Type:      domain.TransactionType("bogus"),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidInput, apperrors.CodeOf(err))

	_, err = mutator.Apply(ctx, Change{
		AccountID: 999999,
		Amount:    mustDecimal(t, "1.00"),
		Type:      domain.TypeDeposit,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.AccountNotFound, apperrors.CodeOf(err))
}

func TestMutator_LedgerSumInvariantAfterSequence(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "0")

	changes := []struct {
		amount string
		txType domain.TransactionType
	}{
		{"250.00", domain.TypeDeposit},
		{"-99.99", domain.TypeWithdrawal},
		{"0.01", domain.TypeDailyInterest},
		{"19.50", domain.TypeAdminCredit},
		{"-5.00", domain.TypeAdminDebit},
	}
	for _, c := range changes {
		_, err := mutator.Apply(ctx, Change{
			AccountID:   account.ID,
			Amount:      mustDecimal(t, c.amount),
			Type:        c.txType,
			Description: "seq",
		})
		require.NoError(t, err)
	}

	requireLedgerConsistent(t, store, account.ID, "0")

	got, err := store.Account().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(mustDecimal(t, "164.52")), "got %s", got.Balance)
}

func TestMutator_Transfer(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	source := seedAccount(t, store, "100.00")
	dest := seedAccount(t, store, "0")

	result, err := mutator.Transfer(ctx, source.ID, dest.ID, mustDecimal(t, "50.00"), "rent")
	require.NoError(t, err)
	assert.True(t, result.SourceBalance.Equal(mustDecimal(t, "50.00")))
	assert.True(t, result.DestBalance.Equal(mustDecimal(t, "50.00")))

	outEntries, err := store.Transaction().ListTransactions(ctx, source.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, outEntries, 1)
	assert.Equal(t, domain.TypeTransferOut, outEntries[0].Type)
	require.NotNil(t, outEntries[0].CounterpartyAccount)
	assert.Equal(t, dest.ID, *outEntries[0].CounterpartyAccount)

	inEntries, err := store.Transaction().ListTransactions(ctx, dest.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, inEntries, 1)
	assert.Equal(t, domain.TypeTransferIn, inEntries[0].Type)
	require.NotNil(t, inEntries[0].CounterpartyAccount)
	assert.Equal(t, source.ID, *inEntries[0].CounterpartyAccount)
}

func TestMutator_TransferInsufficientFundsRollsBackBothLegs(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	source := seedAccount(t, store, "10.00")
	dest := seedAccount(t, store, "5.00")

	_, err := mutator.Transfer(ctx, source.ID, dest.ID, mustDecimal(t, "10.01"), "too much")
	require.Error(t, err)
	assert.Equal(t, apperrors.InsufficientFunds, apperrors.CodeOf(err))

	for _, acc := range []*domain.Account{source, dest} {
		entries, err := store.Transaction().ListTransactions(ctx, acc.ID, domain.TransactionFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	gotSource, err := store.Account().GetAccount(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, gotSource.Balance.Equal(mustDecimal(t, "10.00")))
	gotDest, err := store.Account().GetAccount(ctx, dest.ID)
	require.NoError(t, err)
	assert.True(t, gotDest.Balance.Equal(mustDecimal(t, "5.00")))
}

func TestMutator_TransferValidation(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	account := seedAccount(t, store, "10.00")

	_, err := mutator.Transfer(ctx, account.ID, account.ID, mustDecimal(t, "1.00"), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidInput, apperrors.CodeOf(err))

	_, err = mutator.Transfer(ctx, account.ID, account.ID+1, mustDecimal(t, "-1.00"), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.InvalidAmount, apperrors.CodeOf(err))
}

// Opposing transfers of equal amounts between the same two accounts, run
// concurrently, must neither deadlock nor lose updates: both balances end
// exactly where they started.
func TestMutator_ConcurrentOpposingTransfers(t *testing.T) {
	mutator, store := newTestMutator(t)
	ctx := context.Background()
	a := seedAccount(t, store, "500.00")
	b := seedAccount(t, store, "500.00")

	const (
		workers   = 8
		transfers = 5
	)
	amount := mustDecimal(t, "10.00")

	var wg sync.WaitGroup
	errCh := make(chan error, workers*transfers)
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < transfers; i++ {
				var err error
				if w%2 == 0 {
					_, err = mutator.Transfer(ctx, a.ID, b.ID, amount, "ping")
				} else {
					_, err = mutator.Transfer(ctx, b.ID, a.ID, amount, "pong")
				}
				if err != nil {
					errCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("transfer failed: %v", err)
	}

	gotA, err := store.Account().GetAccount(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := store.Account().GetAccount(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, gotA.Balance.Equal(mustDecimal(t, "500.00")), "account a drifted to %s", gotA.Balance)
	assert.True(t, gotB.Balance.Equal(mustDecimal(t, "500.00")), "account b drifted to %s", gotB.Balance)

	requireLedgerConsistent(t, store, a.ID, "500.00")
	requireLedgerConsistent(t, store, b.ID, "500.00")
}

// holdRowLock locks the account row in its own transaction and keeps it until
// release is closed. It signals on locked once the lock is held.
func holdRowLock(ctx context.Context, store *repository.Store, accountID int64, locked, release chan struct{}) chan error {
	done := make(chan error, 1)
	go func() {
		done <- store.WithTransaction(ctx, func(txStore *repository.Store) error {
			if _, err := txStore.Account().GetAccountForUpdate(ctx, accountID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	return done
}

// A mutation blocked on a held row lock must abort cleanly once the lock wait
// times out: the caller sees a retryable concurrency conflict and the account
// carries no trace of the attempt.
func TestMutator_LockWaitTimesOutAsConcurrencyConflict(t *testing.T) {
	database := db.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(database, logger, 5*time.Second)
	contested := repository.NewStore(database, logger, 100*time.Millisecond)
	mutator := NewMutator(contested, logger, 0)
	ctx := context.Background()

	account := seedAccount(t, store, "100.00")

	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := holdRowLock(ctx, store, account.ID, locked, release)
	<-locked

	_, err := mutator.Apply(ctx, Change{
		AccountID:   account.ID,
		Amount:      mustDecimal(t, "10.00"),
		Type:        domain.TypeDeposit,
		Description: "contested",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ConcurrencyConflict, apperrors.CodeOf(err))

	close(release)
	require.NoError(t, <-holderDone)

	// Nothing committed: balance unchanged, no ledger entry.
	fresh, err := store.Account().GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Balance.Equal(mustDecimal(t, "100.00")))

	entries, err := store.Transaction().ListTransactions(ctx, account.ID, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// With retries enabled, a mutation that first loses the lock race succeeds
// once the holder commits.
func TestMutator_RetrySucceedsAfterLockReleased(t *testing.T) {
	database := db.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(database, logger, 5*time.Second)
	contested := repository.NewStore(database, logger, 100*time.Millisecond)
	mutator := NewMutator(contested, logger, 5)
	ctx := context.Background()

	account := seedAccount(t, store, "100.00")

	locked := make(chan struct{})
	release := make(chan struct{})
	holderDone := holdRowLock(ctx, store, account.ID, locked, release)
	<-locked

	go func() {
		time.Sleep(300 * time.Millisecond)
		close(release)
	}()

	result, err := mutator.Apply(ctx, Change{
		AccountID:   account.ID,
		Amount:      mustDecimal(t, "10.00"),
		Type:        domain.TypeDeposit,
		Description: "contested",
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(mustDecimal(t, "110.00")))
	require.NoError(t, <-holderDone)

	requireLedgerConsistent(t, store, account.ID, "100.00")
}
