// Command accrual is the cron-facing entrypoint: it runs one daily interest
// accrual and exits. Invoking it twice for the same date is harmless.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"bank-ledger/internal/accrual"
	"bank-ledger/internal/config"
	"bank-ledger/internal/db"
	"bank-ledger/internal/ledger"
	"bank-ledger/internal/repository"
)

func main() {
	dateFlag := flag.String("date", "", "calculation date as YYYY-MM-DD (default: today, UTC)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	forDate := time.Now().UTC()
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			logger.Error("invalid -date, want YYYY-MM-DD", "value", *dateFlag)
			os.Exit(2)
		}
		forDate = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	annualRate, err := decimal.NewFromString(cfg.AnnualInterestRate)
	if err != nil {
		logger.Error("invalid ANNUAL_INTEREST_RATE", "value", cfg.AnnualInterestRate, "error", err)
		os.Exit(1)
	}

	database, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	if err := db.Migrate(database); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(database, logger, cfg.LockTimeout)
	mutator := ledger.NewMutator(store, logger, cfg.MutationRetries)
	job := accrual.NewJob(store, mutator, logger, annualRate)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := job.Run(ctx, forDate)
	if err != nil {
		logger.Error("accrual run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("accrual run finished",
		"date", result.Date.Format("2006-01-02"),
		"already_run", result.AlreadyRun,
		"accounts_processed", result.AccountsProcessed,
		"total_interest_paid", result.TotalInterestPaid,
		"failures", len(result.Failures))

	if len(result.Failures) > 0 {
		// Partial failures are non-fatal to the run but reported through the
		// exit code so monitoring can retry the affected accounts.
		os.Exit(3)
	}
}
