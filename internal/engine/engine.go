// Package engine runs the turn pipeline: movement, incoming missiles, player
// cooldowns, player command, enemy phase, PD reset, enemy cooldowns, missile
// sync and win check, followed by the turn summary.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/broadside-sim/broadside/internal/ai"
	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/internal/command"
	"github.com/broadside-sim/broadside/internal/missile"
	"github.com/broadside-sim/broadside/pkg/core"
)

// ErrTurnInProgress is returned when ExecuteTurn is called while another
// call on the same engine has not returned.
var ErrTurnInProgress = errors.New("turn already in progress")

// Narrator turns the event trail into log entries.
type Narrator interface {
	Narrate(events []core.Event) []core.LogEntry
	Reset()
}

// TurnResult is the new snapshot and the ordered events that produced it.
type TurnResult struct {
	State  core.GameState
	Events []core.Event
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoller sets the randomness source.
func WithRoller(r combat.Roller) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithClock sets the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithBalance overrides the default tuning.
func WithBalance(cfg balance.Config) Option {
	return func(e *Engine) {
		e.cfg = balance.Sanitize(cfg)
	}
}

// WithNarrator appends narrated log entries to each new state.
func WithNarrator(n Narrator) Option {
	return func(e *Engine) {
		e.narrator = n
	}
}

// WithLogger sets the logger used to report recovered faults.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Engine owns the missile collection across turns. Turns on one engine must
// not overlap; an overlapping call fails with ErrTurnInProgress.
type Engine struct {
	cfg      balance.Config
	rng      combat.Roller
	now      func() time.Time
	narrator Narrator
	logger   *slog.Logger

	missiles *missile.Manager
	resolver *command.Resolver
	policy   *ai.Policy
	metrics  *metrics

	busy atomic.Bool
}

// New builds an engine. Without options it uses the default tuning, a
// time-seeded roller, the wall clock and no narrator.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    balance.Default(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = combat.NewRoller(time.Now().UnixNano())
	}

	e.missiles = missile.NewManager(e.cfg)
	e.resolver = command.NewResolver(e.cfg)
	e.policy = ai.NewPolicy(e.cfg)

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating engine metrics: %w", err)
	}
	e.metrics = m
	return e, nil
}

// Config returns the tuning in effect.
func (e *Engine) Config() balance.Config {
	return e.cfg
}

// Busy reports whether a turn is being executed.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// ExecuteTurn advances prev by one turn. prev is never modified and the
// returned state shares no memory with it. Invalid commands and faults in
// any phase surface as events; the only error is ErrTurnInProgress.
func (e *Engine) ExecuteTurn(prev core.GameState, cmd core.Command) (TurnResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return TurnResult{}, ErrTurnInProgress
	}
	defer e.busy.Store(false)

	st := prev.Clone()
	t := &turn{e: e, st: &st}

	t.emit(core.EventTurnStart, core.TurnStart{TurnNumber: st.TurnNumber})
	t.run(contextMovement, t.movement)
	t.run(contextMissiles, t.incomingMissiles)
	t.run(contextCooldowns, t.tickPlayerCooldowns)
	t.playerCommand(cmd)
	t.enemyPhase()
	st.Player.PDShotsRemaining = e.cfg.PDShotsPerTurn
	t.run(contextTurnEnd, func() {
		ai.TickCooldowns(&st.Enemy)
		st.Missiles = e.missiles.All()
		t.checkWin()
	})
	t.emit(core.EventSummaryReady, t.summary())

	if e.narrator != nil {
		st.Logs = append(st.Logs, t.narrate()...)
	}
	st.TurnNumber++

	e.metrics.record(t)
	return TurnResult{State: st, Events: t.events}, nil
}

// Resume loads the missiles of a stored snapshot into the engine so the next
// turn continues from it.
func (e *Engine) Resume(st core.GameState) {
	e.missiles.Restore(st.Missiles, 0)
}

// ResetState clears missiles, restarts missile and log ids at 1.
func (e *Engine) ResetState() {
	e.missiles.Reset()
	if e.narrator != nil {
		e.narrator.Reset()
	}
}
