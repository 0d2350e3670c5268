package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/xxxsen/lexdesk/internal/config"
	"github.com/xxxsen/lexdesk/internal/db"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
	"github.com/xxxsen/lexdesk/internal/repo"
)

// OpenTestConn returns a migrated record store. It uses the postgres server
// named by TEST_DB_HOST when set and a temporary sqlite file otherwise.
func OpenTestConn(t *testing.T) *repo.Conn {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "lexdesk_test.db"),
	}
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
		if port == 0 {
			port = 5432
		}
		cfg = config.DatabaseConfig{
			Driver:   db.DriverPostgres,
			Host:     host,
			Port:     port,
			User:     "lexdesk",
			Password: "lexdesk_pass",
			DBName:   "lexdesk_test",
			SSLMode:  "disable",
		}
	}
	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn, cfg.Driver); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	policy := retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	return repo.NewConn(conn, cfg.Driver, policy)
}
