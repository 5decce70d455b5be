// Package postgres implements the storage.Backend interface on PostgreSQL.
// The queueing and writing live in the shared GORM backend; this package
// owns the connection.
package postgres

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/broadside-sim/broadside/internal/database"
	gormstorage "github.com/broadside-sim/broadside/internal/storage/gorm"
)

// Backend is a GORM backend connected to Postgres on Init.
type Backend struct {
	*gormstorage.Backend
	flushInterval time.Duration
	log           *slog.Logger
}

// New creates a Postgres backend. The connection is opened by Init using
// the db.* config keys.
func New(flushInterval time.Duration, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{flushInterval: flushInterval, log: logger}
}

// Init connects, validates the connection and starts the writer.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate postgres connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Logger:        b.log,
		FlushInterval: b.flushInterval,
	})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.Info("connected to postgres")
	return nil
}

// Close stops the writer and closes the connection pool.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
