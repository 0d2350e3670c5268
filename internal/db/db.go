package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/lexdesk/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver, dsn := buildDSN(cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// sqlite has a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func buildDSN(cfg config.DatabaseConfig) (string, string) {
	if cfg.Driver == DriverSQLite {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:" + cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		return DriverSQLite, dsn
	}
	if cfg.DSN != "" {
		return DriverPostgres, cfg.DSN
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return DriverPostgres, fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
}

// ApplyMigrations runs every embedded migration of the driver in file order.
// Statements are split on ';'; "already exists" and "duplicate column"
// failures are ignored so reruns are harmless.
func ApplyMigrations(db *sql.DB, driver string) error {
	dir := "migrations/" + driver
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("read migrations for %s: %w", driver, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, dir+"/"+file)
		if err != nil {
			return err
		}
		queries := strings.Split(string(content), ";")
		for _, q := range queries {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := db.Exec(q); err != nil {
				if msg := err.Error(); strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
		logutil.GetLogger(context.Background()).Debug("migration applied", zap.String("driver", driver), zap.String("file", file))
	}
	return nil
}
