package worker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/dispatcher"
	"github.com/broadside-sim/broadside/internal/session"
	"github.com/broadside-sim/broadside/internal/storage"
	"github.com/broadside-sim/broadside/pkg/core"
)

// Uploader sends an exported battle file to an archive server.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Session     *session.Session
	Backend     storage.Backend
	Uploader    Uploader
	UploadOnEnd bool
	// Scenario is the base that :BATTLE:START: overrides apply to.
	Scenario balance.Scenario
	Logger   *slog.Logger
}

// Manager bridges dispatcher requests to the session.
type Manager struct {
	deps       Dependencies
	log        *slog.Logger
	dispatcher *dispatcher.Dispatcher
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{deps: deps, log: log}
}

// WriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// PendingProvider is implemented by backends that buffer writes.
type PendingProvider interface {
	Pending() (turns, events int)
}

// Status describes the live battle and the storage writer.
type Status struct {
	BattleID          string        `json:"battleId,omitempty"`
	Scenario          string        `json:"scenario,omitempty"`
	Turn              int           `json:"turn"`
	Busy              bool          `json:"busy"`
	Ended             bool          `json:"ended"`
	GameOver          bool          `json:"gameOver"`
	LastWriteDuration time.Duration `json:"lastWriteDuration"`
	PendingTurns      int           `json:"pendingTurns"`
	PendingEvents     int           `json:"pendingEvents"`
}

// Status reports the live battle and, when the backend supports it, its
// write statistics.
func (m *Manager) Status() Status {
	st := m.deps.Session.State()
	out := Status{
		Turn:     st.TurnNumber,
		Busy:     m.deps.Session.Busy(),
		Ended:    m.deps.Session.Ended(),
		GameOver: st.GameOver,
	}
	if b, ok := m.deps.Session.Battle(); ok {
		out.BattleID = b.ID
		out.Scenario = b.Scenario
	}
	if p, ok := m.deps.Backend.(WriteDurationProvider); ok {
		out.LastWriteDuration = p.LastWriteDuration()
	}
	if p, ok := m.deps.Backend.(PendingProvider); ok {
		out.PendingTurns, out.PendingEvents = p.Pending()
	}
	return out
}
