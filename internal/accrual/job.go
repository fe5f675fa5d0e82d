// Package accrual implements the idempotent daily interest job. Interest is
// simple daily interest at a fixed annual rate: each eligible account earns
// round2(balance × rate/100/365) once per calendar date. A unique row in the
// calculation log is the only guard against double-crediting, which makes the
// job safe to fire from any number of replicas or overlapping cron runs.
package accrual

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
	"bank-ledger/internal/money"
	"bank-ledger/internal/repository"
)

// AccountFailure records one account whose accrual failed. Failures are
// isolated: they never abort the rest of the run.
type AccountFailure struct {
	AccountID int64  `json:"account_id"`
	Error     string `json:"error"`
}

// RunResult summarizes one accrual invocation.
type RunResult struct {
	Date              time.Time        `json:"calculation_date"`
	AlreadyRun        bool             `json:"already_run"`
	AccountsProcessed int              `json:"accounts_processed"`
	TotalInterestPaid decimal.Decimal  `json:"total_interest_paid"`
	Failures          []AccountFailure `json:"failures,omitempty"`
}

type Job struct {
	store      *repository.Store
	mutator    *ledger.Mutator
	logger     *slog.Logger
	annualRate decimal.Decimal
}

func NewJob(store *repository.Store, mutator *ledger.Mutator, logger *slog.Logger, annualRatePercent decimal.Decimal) *Job {
	return &Job{
		store:      store,
		mutator:    mutator,
		logger:     logger,
		annualRate: annualRatePercent,
	}
}

// Run accrues one day of interest for every account with a positive balance.
// Invoking it again for the same date is a no-op returning AlreadyRun. Each
// account's accrual commits independently, so an interrupted run keeps the
// interest already paid and a later retry of the same date pays nobody twice
// only if the calculation row was not yet written; the row is written after
// best-effort processing of all accounts.
func (j *Job) Run(ctx context.Context, forDate time.Time) (*RunResult, error) {
	date := forDate.UTC().Truncate(24 * time.Hour)
	result := &RunResult{Date: date, TotalInterestPaid: decimal.Zero}

	ran, err := j.store.Calculation().HasRun(ctx, date)
	if err != nil {
		return nil, err
	}
	if ran {
		result.AlreadyRun = true
		j.logger.Info("daily accrual already recorded", "date", date.Format("2006-01-02"))
		return result, nil
	}

	balances, err := j.store.Account().ListPositiveBalances(ctx)
	if err != nil {
		return nil, err
	}

	for _, ab := range balances {
		interest := money.DailyInterest(ab.Balance, j.annualRate)
		if interest.Sign() <= 0 {
			// Sub-cent computed interest: skip, no zero-amount ledger rows.
			continue
		}

		_, err := j.mutator.Apply(ctx, ledger.Change{
			AccountID:   ab.ID,
			Amount:      interest,
			Type:        domain.TypeDailyInterest,
			Description: "Daily interest " + date.Format("2006-01-02"),
		})
		if err != nil {
			j.logger.Error("account accrual failed",
				"account_id", ab.ID,
				"date", date.Format("2006-01-02"),
				"error", err)
			result.Failures = append(result.Failures, AccountFailure{
				AccountID: ab.ID,
				Error:     err.Error(),
			})
			continue
		}

		result.AccountsProcessed++
		result.TotalInterestPaid = result.TotalInterestPaid.Add(interest)
	}

	err = j.store.Calculation().RecordRun(ctx, &domain.DailyInterestCalculation{
		CalculationDate:   date,
		AccountsProcessed: result.AccountsProcessed,
		TotalInterestPaid: result.TotalInterestPaid,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.AlreadyRun) {
			// A concurrent run won the insert race. The interest this run
			// paid stands; report the date as already handled.
			result.AlreadyRun = true
			return result, nil
		}
		return nil, err
	}

	j.logger.Info("daily accrual completed",
		"date", date.Format("2006-01-02"),
		"accounts_processed", result.AccountsProcessed,
		"total_interest_paid", result.TotalInterestPaid,
		"failures", len(result.Failures))
	return result, nil
}
