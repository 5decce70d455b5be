// Package session owns the authoritative battle snapshot. It runs turns
// through the engine, publishes their events on the bus and records them
// to storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/internal/engine"
	"github.com/broadside-sim/broadside/internal/eventbus"
	"github.com/broadside-sim/broadside/internal/narrate"
	"github.com/broadside-sim/broadside/internal/storage"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/google/uuid"
)

var (
	// ErrGameOver is returned by RunTurn once the battle has a winner.
	ErrGameOver = errors.New("battle is over")
	// ErrNoBattle is returned when no battle has been started.
	ErrNoBattle = errors.New("no battle in progress")
)

// Error contexts reported in ERROR_OCCURRED events raised by the session.
const (
	ContextRunTurn    = "game_engine_run_turn"
	ContextStartStore = "game_engine_start_battle"
	ContextEndStore   = "game_engine_end_battle"
)

// TurnObserver is told about every recorded turn.
type TurnObserver interface {
	ObserveTurn(rec *core.TurnRecord)
}

// Option configures a Session.
type Option func(*Session)

// WithStorage records battles to b. b must already be initialized.
func WithStorage(b storage.Backend) Option {
	return func(s *Session) { s.store = b }
}

// WithBus publishes events on bus instead of a private one.
func WithBus(bus *eventbus.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithObserver adds a turn observer.
func WithObserver(o TurnObserver) Option {
	return func(s *Session) { s.observers = append(s.observers, o) }
}

// WithScenario sets the loadout used by Start and Reset.
func WithScenario(sc balance.Scenario) Option {
	return func(s *Session) { s.scenario = sc }
}

// WithBalance sets the tuning.
func WithBalance(cfg balance.Config) Option {
	return func(s *Session) { s.cfg = balance.Sanitize(cfg) }
}

// WithRoller sets the engine's randomness source.
func WithRoller(r combat.Roller) Option {
	return func(s *Session) { s.roller = r }
}

// WithClock sets the time source for events, logs and records.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is safe for concurrent use. Only one turn runs at a time; other
// mutating calls made meanwhile fail with engine.ErrTurnInProgress.
type Session struct {
	engine    *engine.Engine
	narrator  *narrate.Narrator
	bus       *eventbus.Bus
	store     storage.Backend
	observers []TurnObserver
	scenario  balance.Scenario
	cfg       balance.Config
	roller    combat.Roller
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	battle  *core.Battle
	state   core.GameState
	ended   bool
	running bool

	logCtx atomic.Pointer[logContext]
}

type logContext struct {
	battle string
	turn   int
}

// New builds a session. No battle is started until Start.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		narrator: narrate.New(),
		scenario: balance.DefaultScenario(),
		cfg:      balance.Default(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = eventbus.New(s.logger)
	}
	if err := s.scenario.Validate(); err != nil {
		return nil, err
	}

	engOpts := []engine.Option{
		engine.WithBalance(s.cfg),
		engine.WithNarrator(s.narrator),
		engine.WithClock(s.now),
		engine.WithLogger(s.logger),
	}
	if s.roller != nil {
		engOpts = append(engOpts, engine.WithRoller(s.roller))
	}
	eng, err := engine.New(engOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = eng
	s.cfg = eng.Config()
	return s, nil
}

// Bus returns the bus events are published on.
func (s *Session) Bus() *eventbus.Bus {
	return s.bus
}

// Start begins a battle with the configured scenario. A battle still in
// progress is closed as abandoned first.
func (s *Session) Start() (core.GameState, error) {
	return s.StartScenario(s.scenario)
}

// StartScenario begins a battle with sc, which also becomes the scenario
// used by Reset.
func (s *Session) StartScenario(sc balance.Scenario) (core.GameState, error) {
	if err := sc.Validate(); err != nil {
		return core.GameState{}, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return core.GameState{}, engine.ErrTurnInProgress
	}
	pending := s.abandonLocked()
	s.scenario = sc
	st, started := s.beginLocked(balance.NewGameState(sc, s.cfg), sc.Name, true)
	s.mu.Unlock()

	pending = append(pending, started...)

	s.publish(pending...)
	return st, nil
}

// Resume continues a stored battle from its last recorded snapshot. The
// continuation is recorded as a new battle whose initial state is that
// snapshot.
func (s *Session) Resume(loader storage.Loader, id string) (core.GameState, error) {
	battle, turns, err := loader.LoadBattle(id)
	if err != nil {
		return core.GameState{}, fmt.Errorf("loading battle %s: %w", id, err)
	}
	st := battle.Initial
	if len(turns) > 0 {
		st = turns[len(turns)-1].State
	}
	if st.GameOver {
		return core.GameState{}, fmt.Errorf("resuming battle %s: %w", id, ErrGameOver)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return core.GameState{}, engine.ErrTurnInProgress
	}
	pending := s.abandonLocked()
	s.engine.Resume(st)
	s.narrator.Resume(st.Logs)
	out, started := s.beginLocked(st, battle.Scenario, false)
	s.mu.Unlock()

	pending = append(pending, started...)

	s.publish(pending...)
	return out, nil
}

// beginLocked installs st as the live snapshot and opens a recorded battle.
// fresh battles reset the engine and get the opening log entry. It returns
// the events to publish once the lock is released.
func (s *Session) beginLocked(st core.GameState, scenario string, fresh bool) (core.GameState, []core.Event) {
	now := s.now()
	if fresh {
		s.engine.ResetState()
		st.Logs = append(st.Logs, s.narrator.Opening(st.Enemy.Distance, now))
	}

	balanceJSON, err := json.Marshal(s.cfg)
	if err != nil {
		balanceJSON = nil
	}
	s.battle = &core.Battle{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		EnemyName: st.Enemy.Name,
		StartedAt: now,
		Balance:   balanceJSON,
		Initial:   st.Clone(),
	}
	s.state = st
	s.ended = false
	s.storeLogContextLocked()

	var events []core.Event
	if s.store != nil {
		if err := s.store.StartBattle(s.battle); err != nil {
			s.logger.Error("failed to start battle recording", "battle", s.battle.ID, "error", err)
			events = append(events, s.errorEvent(err, ContextStartStore))
		}
	}
	s.logger.Info("battle started", "battle", s.battle.ID, "scenario", scenario, "distance", st.Enemy.Distance)
	return st.Clone(), events
}

// abandonLocked closes an unfinished battle. It returns the events to
// publish once the lock is released.
func (s *Session) abandonLocked() []core.Event {
	if s.battle == nil || s.ended {
		return nil
	}
	return s.closeLocked(core.EndAbandoned)
}

// closeLocked ends the recorded battle.
func (s *Session) closeLocked(reason core.EndReason) []core.Event {
	s.ended = true
	if s.store == nil {
		return nil
	}
	outcome := &core.BattleOutcome{
		BattleID: s.battle.ID,
		Winner:   s.state.Winner,
		Reason:   reason,
		Turns:    s.state.TurnNumber - s.battle.Initial.TurnNumber,
		EndedAt:  s.now(),
	}
	if err := s.store.EndBattle(outcome); err != nil {
		s.logger.Error("failed to end battle recording", "battle", s.battle.ID, "error", err)
		return []core.Event{s.errorEvent(err, ContextEndStore)}
	}
	return nil
}

// RunTurn resolves cmd against the live snapshot. It fails with ErrNoBattle
// before Start, ErrGameOver once the battle has a winner, and
// engine.ErrTurnInProgress while another turn is running. Storage faults do
// not fail the turn; they are logged and published as ERROR_OCCURRED.
func (s *Session) RunTurn(cmd core.Command) (engine.TurnResult, error) {
	s.mu.Lock()
	switch {
	case s.battle == nil:
		s.mu.Unlock()
		return engine.TurnResult{}, ErrNoBattle
	case s.state.GameOver:
		s.mu.Unlock()
		return engine.TurnResult{}, ErrGameOver
	case s.running:
		s.mu.Unlock()
		return engine.TurnResult{}, engine.ErrTurnInProgress
	}
	s.running = true
	prev := s.state
	battleID := s.battle.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res, err := s.engine.ExecuteTurn(prev, cmd)
	if err != nil {
		return engine.TurnResult{}, err
	}

	rec := &core.TurnRecord{
		BattleID:   battleID,
		TurnNumber: prev.TurnNumber,
		Command:    cmd,
		Events:     res.Events,
		State:      res.State.Clone(),
		RecordedAt: s.now(),
	}

	events := append([]core.Event(nil), res.Events...)
	events = append(events, core.Event{
		Type:      core.EventTurnComplete,
		Turn:      prev.TurnNumber,
		Timestamp: rec.RecordedAt,
		Data:      summaryOf(res),
	})

	s.mu.Lock()
	s.state = res.State.Clone()
	s.storeLogContextLocked()
	if s.store != nil {
		if err := s.store.RecordTurn(rec); err != nil {
			s.logger.Error("failed to record turn", "battle", battleID, "turn", prev.TurnNumber, "error", err)
			events = append(events, s.errorEvent(err, ContextRunTurn))
		}
	}
	if res.State.GameOver {
		events = append(events, core.Event{
			Type:      core.EventGameOver,
			Turn:      prev.TurnNumber,
			Timestamp: rec.RecordedAt,
			Data:      core.GameOver{Winner: res.State.Winner, TurnNumber: prev.TurnNumber},
		})
		events = append(events, s.closeLocked(core.EndDestroyed)...)
		s.logger.Info("battle over", "battle", battleID, "winner", res.State.Winner, "turn", prev.TurnNumber)
	}
	s.mu.Unlock()

	for _, o := range s.observers {
		o.ObserveTurn(rec)
	}
	s.publish(events...)
	return res, nil
}

// summaryOf returns the engine's own summary of the turn.
func summaryOf(res engine.TurnResult) core.TurnSummary {
	for i := len(res.Events) - 1; i >= 0; i-- {
		if sum, ok := res.Events[i].Data.(core.TurnSummary); ok {
			return sum
		}
	}
	st := res.State
	return core.TurnSummary{
		TurnNumber:     st.TurnNumber - 1,
		PlayerHull:     st.Player.Hull.Total(),
		PlayerShields:  st.Player.Shields,
		EnemyHull:      st.Enemy.Hull,
		Distance:       st.Enemy.Distance,
		ActiveMissiles: len(st.Missiles),
		GameOver:       st.GameOver,
		Winner:         st.Winner,
	}
}

// Reset abandons the current battle and starts a fresh one with the same
// scenario, restarting missile and log ids.
func (s *Session) Reset() (core.GameState, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return core.GameState{}, engine.ErrTurnInProgress
	}
	pending := s.abandonLocked()
	st, started := s.beginLocked(balance.NewGameState(s.scenario, s.cfg), s.scenario.Name, true)
	s.mu.Unlock()

	pending = append(pending, started...)
	pending = append(pending, core.Event{
		Type:      core.EventGameReset,
		Turn:      st.TurnNumber,
		Timestamp: s.now(),
	})
	s.publish(pending...)
	return st, nil
}

// End closes the current battle. Ending a finished battle is a no-op.
func (s *Session) End() error {
	s.mu.Lock()
	if s.battle == nil {
		s.mu.Unlock()
		return ErrNoBattle
	}
	if s.running {
		s.mu.Unlock()
		return engine.ErrTurnInProgress
	}
	pending := s.abandonLocked()
	s.mu.Unlock()

	s.publish(pending...)
	return nil
}

// State returns a copy of the live snapshot.
func (s *Session) State() core.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Battle returns the current battle, if any.
func (s *Session) Battle() (core.Battle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.battle == nil {
		return core.Battle{}, false
	}
	b := *s.battle
	b.Initial = s.battle.Initial.Clone()
	return b, true
}

// Ended reports whether the current battle has been closed.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Busy reports whether a turn is being resolved.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Config returns the tuning in effect.
func (s *Session) Config() balance.Config {
	return s.cfg
}

// LogAttrs describes the live battle for log records. It takes no lock, so
// it is safe to call from log handlers while the session lock is held.
func (s *Session) LogAttrs() []slog.Attr {
	lc := s.logCtx.Load()
	if lc == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("battle", lc.battle),
		slog.Int("turn", lc.turn),
	}
}

func (s *Session) storeLogContextLocked() {
	if s.battle == nil {
		s.logCtx.Store(nil)
		return
	}
	s.logCtx.Store(&logContext{battle: s.battle.ID, turn: s.state.TurnNumber})
}

func (s *Session) errorEvent(err error, context string) core.Event {
	return core.Event{
		Type:      core.EventErrorOccurred,
		Turn:      s.state.TurnNumber,
		Timestamp: s.now(),
		Data:      core.ErrorOccurred{Error: err.Error(), Context: context},
	}
}

func (s *Session) publish(events ...core.Event) {
	for _, ev := range events {
		s.bus.Emit(ev)
	}
}
