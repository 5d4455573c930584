package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"settlement-ledger-go/internal/database"
	"settlement-ledger-go/internal/models"
)

// TestRedisAddr returns the Redis address for integration tests.
func TestRedisAddr() string {
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// TestNATSURL returns the NATS URL for integration tests.
func TestNATSURL() string {
	if url := os.Getenv("TEST_NATS_URL"); url != "" {
		return url
	}
	return "nats://localhost:4222"
}

// TestDatabaseConfig points at a fresh SQLite file under t.TempDir.
func TestDatabaseConfig(t *testing.T) models.DatabaseConfig {
	t.Helper()
	return models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "settlement.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     5 * time.Second,
	}
}

// SetupTestService opens a fully migrated database service that is closed
// when the test ends.
func SetupTestService(t *testing.T) *database.Service {
	t.Helper()

	svc, err := database.NewService(context.Background(), TestDatabaseConfig(t))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}
