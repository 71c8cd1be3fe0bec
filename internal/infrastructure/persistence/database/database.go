// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
}

// Options selects the backing database. Turso is used when both URL and token are set.
type Options struct {
	SQLitePath   string
	TursoURL     string
	TursoToken   string
	MaxOpenConns int
	MaxIdleConns int
}

// UseTurso reports whether the options point at a remote libSQL database
func (o Options) UseTurso() bool {
	return o.TursoURL != "" && o.TursoToken != ""
}

// Open connects to Turso or to a local SQLite file depending on opts.
func Open(ctx context.Context, opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	driver, dsn := DriverSQLite, SQLiteDSN(opts.SQLitePath)
	if opts.UseTurso() {
		driver, dsn = DriverLibSQL, TursoDSN(opts.TursoURL, opts.TursoToken)
	} else if dir := filepath.Dir(opts.SQLitePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := NewConnectionWithLogger(ctx, driver, dsn, logger)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	return db, nil
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(ctx context.Context, driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if err = db.PingContext(ctx); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, err
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	CheckAndLogSlowQuery(logger, "DATABASE_CONNECTION", duration)

	return &DB{DB: db, Driver: driverName}, nil
}
