package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailyInterestCalculation records one completed accrual run. The unique
// constraint on CalculationDate is the idempotence guard: a row for date D
// means D's interest has been paid, regardless of which replica paid it.
type DailyInterestCalculation struct {
	CalculationDate   time.Time       `json:"calculation_date"`
	AccountsProcessed int             `json:"accounts_processed"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
	CompletedAt       time.Time       `json:"completed_at"`
}

type CalculationRepository interface {
	// HasRun reports whether an accrual run has been recorded for the date.
	HasRun(ctx context.Context, date time.Time) (bool, error)
	// RecordRun inserts the calculation row. A concurrent run that already
	// inserted for the same date surfaces as a duplicate error.
	RecordRun(ctx context.Context, calc *DailyInterestCalculation) error
	// GetRun returns the calculation row for the date, if any.
	GetRun(ctx context.Context, date time.Time) (*DailyInterestCalculation, error)
}
