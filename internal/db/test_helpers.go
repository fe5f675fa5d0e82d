package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDBName     = "bank_ledger_test"
	testDBUser     = "postgres"
	testDBPassword = "password"
)

// StartTestPostgres starts a disposable Postgres container and returns its
// host and mapped port. The container is terminated when the test finishes.
func StartTestPostgres(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %s", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %s", err)
	}

	return host, port.Int()
}

// TestConnectionString builds the lib/pq DSN for a test container.
func TestConnectionString(host string, port int) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, testDBUser, testDBPassword, testDBName)
}

// SetupTestDB starts a Postgres container, connects to it and applies all
// migrations. The connection is closed when the test finishes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	host, port := StartTestPostgres(t)

	database, err := sql.Open("postgres", TestConnectionString(host, port))
	if err != nil {
		t.Fatalf("failed to open database: %s", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	if err := database.Ping(); err != nil {
		t.Fatalf("failed to ping database: %s", err)
	}

	if err := Migrate(database); err != nil {
		t.Fatalf("failed to apply migrations: %s", err)
	}

	return database
}
