// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/internal/storage/memory"
	"github.com/broadside-sim/broadside/internal/storage/postgres"
	sqlitestorage "github.com/broadside-sim/broadside/internal/storage/sqlite"
	"github.com/broadside-sim/broadside/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration. The backend
// still needs Init before use.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.FlushInterval, logger), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, cfg.FlushInterval, logger)
	case "memory":
		return memory.New(cfg.Memory), nil
	case "websocket":
		return websocket.New(cfg.WebSocket, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
