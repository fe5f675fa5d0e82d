// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"bank_ledger"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// DefaultCurrency is the single supported currency unit.
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD"`

	// AnnualInterestRate is the simple annual rate in percent applied by the
	// daily accrual job.
	AnnualInterestRate string `env:"ANNUAL_INTEREST_RATE" envDefault:"2.0"`

	// LockTimeout bounds how long a balance mutation waits for a row lock
	// before failing with a concurrency conflict.
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`

	// MutationRetries is how many times a conflicted mutation is retried
	// before the conflict is surfaced to the caller.
	MutationRetries int `env:"MUTATION_RETRIES" envDefault:"3"`

	// SchedulerEnabled turns on the in-process daily accrual ticker. Leave
	// off when an external cron invokes cmd/accrual instead.
	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// GetDBConnectionString builds the lib/pq connection string.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
