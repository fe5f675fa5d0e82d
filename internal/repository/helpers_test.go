package repository

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bank-ledger/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database := db.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(database, logger, 5*time.Second)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
