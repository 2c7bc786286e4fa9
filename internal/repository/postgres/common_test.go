package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
)

func testPostgresConfig(t *testing.T) (config.PostgresConfig, bool) {
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return config.PostgresConfig{}, false
	}

	cfg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_TEST_HOST"),
		Port:     5432,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASS"),
		Database: os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}
	if cfg.Database == "" {
		cfg.Database = "test_agentgauge"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}
	return cfg, true
}

// getTestDB returns a pgx pool for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestDB(t *testing.T) *database.PostgresDB {
	cfg, ok := testPostgresConfig(t)
	if !ok {
		return nil
	}

	db, err := database.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}

	sqlxDB, err := database.NewSQLX(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect via sqlx: %v", err)
		return nil
	}
	defer sqlxDB.Close()
	if err := EnsureSchema(context.Background(), sqlxDB); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return db
}

// getTestSQLX returns a sqlx handle for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestSQLX(t *testing.T) *sqlx.DB {
	cfg, ok := testPostgresConfig(t)
	if !ok {
		return nil
	}

	db, err := database.NewSQLX(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect via sqlx: %v", err)
		return nil
	}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return db
}
