package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/broadside-sim/broadside/internal/dispatcher"
	"github.com/broadside-sim/broadside/internal/parser"
	"github.com/broadside-sim/broadside/internal/storage"
)

// Request names understood by RegisterHandlers.
const (
	CmdStartBattle = ":BATTLE:START:"
	CmdTurn        = ":TURN:"
	CmdReset       = ":RESET:"
	CmdState       = ":STATE:"
	CmdLogs        = ":LOGS:"
	CmdWeapon      = ":WEAPON:"
	CmdEndBattle   = ":BATTLE:END:"
	CmdStatus      = ":STATUS:"
	CmdUpload      = ":UPLOAD:"
)

// uploadTimeout bounds one archive upload including retries.
const uploadTimeout = 2 * time.Minute

// ErrNothingToUpload is returned when the backend has not exported a file.
var ErrNothingToUpload = errors.New("no exported battle to upload")

// WeaponStatus is the readiness of one player weapon.
type WeaponStatus struct {
	ID      string `json:"id"`
	Ready   bool   `json:"ready"`
	Tooltip string `json:"tooltip"`
}

// RegisterHandlers registers all battle request handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.dispatcher = d

	// Battle lifecycle and turns are synchronous: callers need the new state.
	d.Register(CmdStartBattle, m.handleStartBattle, dispatcher.Logged())
	d.Register(CmdTurn, m.handleTurn, dispatcher.Logged())
	d.Register(CmdReset, m.handleReset, dispatcher.Logged())
	d.Register(CmdEndBattle, m.handleEndBattle, dispatcher.Logged())

	// Queries
	d.Register(CmdState, m.handleState)
	d.Register(CmdLogs, m.handleLogs)
	d.Register(CmdWeapon, m.handleWeapon)
	d.Register(CmdStatus, m.handleStatus)

	// Archive upload runs off the request path.
	d.Register(CmdUpload, m.handleUpload, dispatcher.Buffered(4), dispatcher.Logged())
}

func (m *Manager) handleStartBattle(r dispatcher.Request) (any, error) {
	sc, err := parser.ParseOverrides(r.Args, m.deps.Scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to parse battle overrides: %w", err)
	}
	st, err := m.deps.Session.StartScenario(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to start battle: %w", err)
	}
	if b, ok := m.deps.Session.Battle(); ok {
		m.log.Info("Battle started", "battle", b.ID, "scenario", b.Scenario, "enemy", b.EnemyName)
	}
	return st, nil
}

func (m *Manager) handleTurn(r dispatcher.Request) (any, error) {
	cmd, err := parser.ParseCommand(r.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	res, err := m.deps.Session.RunTurn(cmd)
	if err != nil {
		return nil, err
	}
	if res.State.GameOver {
		m.log.Info("Battle over", "winner", res.State.Winner, "turn", res.State.TurnNumber)
		m.queueUpload()
	}
	return res, nil
}

func (m *Manager) handleReset(dispatcher.Request) (any, error) {
	return m.deps.Session.Reset()
}

func (m *Manager) handleEndBattle(dispatcher.Request) (any, error) {
	ended := m.deps.Session.Ended()
	if err := m.deps.Session.End(); err != nil {
		return nil, err
	}
	if !ended {
		m.queueUpload()
	}
	return m.Status(), nil
}

func (m *Manager) handleState(dispatcher.Request) (any, error) {
	return m.deps.Session.State(), nil
}

func (m *Manager) handleLogs(r dispatcher.Request) (any, error) {
	var category string
	if len(r.Args) > 0 {
		category = parser.TrimQuotes(r.Args[0])
	}
	return m.deps.Session.FilteredLogs(category), nil
}

func (m *Manager) handleWeapon(r dispatcher.Request) (any, error) {
	if len(r.Args) != 1 {
		return nil, fmt.Errorf("%w: expected weapon id", parser.ErrInvalidArgs)
	}
	id := parser.TrimQuotes(r.Args[0])
	return WeaponStatus{
		ID:      id,
		Ready:   m.deps.Session.CanUseWeapon(id),
		Tooltip: m.deps.Session.WeaponTooltip(id),
	}, nil
}

func (m *Manager) handleStatus(dispatcher.Request) (any, error) {
	return m.Status(), nil
}

func (m *Manager) queueUpload() {
	if !m.deps.UploadOnEnd || m.deps.Uploader == nil || m.dispatcher == nil {
		return
	}
	if _, err := m.dispatcher.Dispatch(dispatcher.Request{Name: CmdUpload}); err != nil {
		m.log.Warn("Failed to queue battle upload", "error", err)
	}
}

func (m *Manager) handleUpload(dispatcher.Request) (any, error) {
	if m.deps.Uploader == nil {
		return nil, fmt.Errorf("no archive uploader configured")
	}
	up, ok := m.deps.Backend.(storage.Uploadable)
	if !ok {
		return nil, fmt.Errorf("storage backend does not export battles")
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return nil, ErrNothingToUpload
	}

	meta := up.GetExportMetadata()
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	if err := m.deps.Uploader.Upload(ctx, path, meta); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	m.log.Info("Battle uploaded", "path", path, "battle", meta.BattleName, "turns", meta.Turns)
	return path, nil
}
