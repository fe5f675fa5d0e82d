package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
)

type calculationRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewCalculationRepository(db SQLExecutor, logger *slog.Logger) domain.CalculationRepository {
	return &calculationRepository{
		db:     db,
		logger: logger,
	}
}

// dateOnly truncates to the calendar day in UTC; the table stores a DATE.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func (r *calculationRepository) HasRun(ctx context.Context, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM daily_interest_calculations WHERE calculation_date = $1
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, dateOnly(date)).Scan(&exists); err != nil {
		r.logger.Error("failed to check calculation log", "date", dateOnly(date), "error", err)
		return false, apperrors.New(apperrors.InternalError, "failed to check calculation log").WithDetails(err.Error())
	}
	return exists, nil
}

func (r *calculationRepository) RecordRun(ctx context.Context, calc *domain.DailyInterestCalculation) error {
	query := `
		INSERT INTO daily_interest_calculations
		(calculation_date, accounts_processed, total_interest_paid, completed_at)
		VALUES ($1, $2, $3, $4)
	`

	completedAt := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		query,
		dateOnly(calc.CalculationDate),
		calc.AccountsProcessed,
		calc.TotalInterestPaid.String(),
		completedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			// Another run recorded this date first; the caller treats this
			// as AlreadyRun, not a failure.
			return apperrors.ErrAlreadyRun
		}
		r.logger.Error("failed to record calculation run", "date", dateOnly(calc.CalculationDate), "error", err)
		return apperrors.New(apperrors.InternalError, "failed to record calculation run").WithDetails(err.Error())
	}

	calc.CalculationDate = dateOnly(calc.CalculationDate)
	calc.CompletedAt = completedAt
	r.logger.Info("calculation run recorded",
		"date", calc.CalculationDate.Format("2006-01-02"),
		"accounts_processed", calc.AccountsProcessed,
		"total_interest_paid", calc.TotalInterestPaid)
	return nil
}

func (r *calculationRepository) GetRun(ctx context.Context, date time.Time) (*domain.DailyInterestCalculation, error) {
	query := `
		SELECT calculation_date, accounts_processed, total_interest_paid, completed_at
		FROM daily_interest_calculations WHERE calculation_date = $1
	`

	var calc domain.DailyInterestCalculation
	var totalStr string
	err := r.db.QueryRowContext(ctx, query, dateOnly(date)).Scan(
		&calc.CalculationDate,
		&calc.AccountsProcessed,
		&totalStr,
		&calc.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get calculation run", "date", dateOnly(date), "error", err)
		return nil, apperrors.New(apperrors.InternalError, "failed to get calculation run").WithDetails(err.Error())
	}

	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return nil, apperrors.New(apperrors.InternalError, "failed to parse total interest").WithDetails(err.Error())
	}
	calc.TotalInterestPaid = total
	return &calc, nil
}
