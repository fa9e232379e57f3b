// Package dbtest provides database settings for tests that need a real postgres.
package dbtest

import (
	"os"
	"strconv"
	"testing"

	"github.com/xxxsen/mjournal/internal/config"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// PostgresConfig returns the test database settings, skipping the test when TEST_DB_HOST is unset.
// The database needs the pgvector extension available.
func PostgresConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port, err := strconv.Atoi(envOr("TEST_DB_PORT", "5432"))
	if err != nil {
		t.Fatalf("bad TEST_DB_PORT: %v", err)
	}
	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "mjournal"),
		Password: envOr("TEST_DB_PASSWORD", "mjournal_pass"),
		DBName:   envOr("TEST_DB_NAME", "mjournal_test"),
		SSLMode:  "disable",
	}
}
