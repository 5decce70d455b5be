package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat/combattest"
	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/internal/engine"
	"github.com/broadside-sim/broadside/internal/eventbus"
	"github.com/broadside-sim/broadside/internal/logging"
	"github.com/broadside-sim/broadside/internal/storage/memory"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	pass    = core.Command{Type: core.CommandPass}
	railgun = core.Command{Type: core.CommandFireRailgun, WeaponID: "railgun-1"}
)

// recorder collects every event published on the bus.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) ofType(typ core.EventType) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// failingStore accepts battles but fails every turn.
type failingStore struct {
	*memory.Backend
}

func (f failingStore) RecordTurn(*core.TurnRecord) error {
	return errors.New("disk full")
}

type observer struct {
	turns []int
}

func (o *observer) ObserveTurn(rec *core.TurnRecord) {
	o.turns = append(o.turns, rec.TurnNumber)
}

func scenario(distance int, enemyHull float64) balance.Scenario {
	sc := balance.DefaultScenario()
	sc.Enemy.Distance = distance
	sc.Enemy.Hull = enemyHull
	return sc
}

func newSession(t *testing.T, sc balance.Scenario, opts ...Option) (*Session, *recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.New(logger)
	rec := &recorder{}
	bus.Subscribe(eventbus.Any, rec.handle)

	base := []Option{
		WithScenario(sc),
		WithRoller(combattest.Always(0.999)),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger),
		WithBus(bus),
	}
	s, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return s, rec
}

func TestNew_InvalidScenario(t *testing.T) {
	sc := balance.DefaultScenario()
	sc.Weapons = nil
	_, err := New(WithScenario(sc))
	assert.ErrorIs(t, err, balance.ErrNoWeapons)
}

func TestRunTurn_BeforeStart(t *testing.T) {
	s, _ := newSession(t, scenario(30, 100))
	_, err := s.RunTurn(pass)
	assert.ErrorIs(t, err, ErrNoBattle)
	assert.ErrorIs(t, s.End(), ErrNoBattle)
	assert.Nil(t, s.LogAttrs())
}

func TestStart_OpeningLogAndRecording(t *testing.T) {
	store := memory.New(config.MemoryConfig{})
	s, _ := newSession(t, scenario(30, 100), WithStorage(store))

	st, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TurnNumber)
	require.Len(t, st.Logs, 1)
	assert.Equal(t, "log-1", st.Logs[0].ID)
	assert.Equal(t, "Battle stations! Enemy vessel detected at 30km.", st.Logs[0].Text)

	battle, ok := s.Battle()
	require.True(t, ok)
	assert.NotEmpty(t, battle.ID)
	assert.Equal(t, "default", battle.Scenario)
	assert.Equal(t, fixedNow, battle.StartedAt)
	assert.Contains(t, string(battle.Balance), "pdShotsPerTurn")

	loaded, turns, err := store.LoadBattle(battle.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.ID, loaded.ID)
	assert.Empty(t, turns)

	attrs := s.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, battle.ID, attrs[0].Value.String())
}

func TestRunTurn_PublishesAndRecords(t *testing.T) {
	store := memory.New(config.MemoryConfig{})
	obs := &observer{}
	s, rec := newSession(t, scenario(30, 100), WithStorage(store), WithObserver(obs))
	_, err := s.Start()
	require.NoError(t, err)

	res, err := s.RunTurn(pass)
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.TurnNumber)
	assert.Equal(t, res.State, s.State())

	types := rec.types()
	require.NotEmpty(t, types)
	assert.Equal(t, core.EventTurnStart, types[0])
	assert.Equal(t, core.EventTurnComplete, types[len(types)-1])
	assert.Len(t, types, len(res.Events)+1)

	complete := rec.ofType(core.EventTurnComplete)[0]
	sum := complete.Data.(core.TurnSummary)
	assert.Equal(t, 1, sum.TurnNumber)
	assert.Equal(t, res.State.Enemy.Distance, sum.Distance)

	battle, _ := s.Battle()
	_, turns, err := store.LoadBattle(battle.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, 1, turns[0].TurnNumber)
	assert.Equal(t, pass, turns[0].Command)
	assert.Equal(t, []int{1}, obs.turns)
}

func TestRunTurn_ResultDoesNotAliasLiveState(t *testing.T) {
	s, _ := newSession(t, scenario(30, 100))
	_, err := s.Start()
	require.NoError(t, err)

	res, err := s.RunTurn(pass)
	require.NoError(t, err)
	want := s.State()

	res.State.Weapons[0].Cooldown = 99
	res.State.Enemy.Weapons[0].Cooldown = 99
	require.NotEmpty(t, res.State.Logs)
	res.State.Logs[0].Text = "rewritten"
	res.State.Missiles = append(res.State.Missiles, core.Missile{ID: "M0-0"})

	assert.Equal(t, want, s.State())

	next, err := s.RunTurn(pass)
	require.NoError(t, err)
	assert.Zero(t, next.State.Weapons[0].Cooldown)
	assert.NotEqual(t, "rewritten", next.State.Logs[0].Text)
	for _, m := range next.State.Missiles {
		assert.NotEqual(t, "M0-0", m.ID)
	}
}

func TestRunTurn_GameOverEndsBattle(t *testing.T) {
	store := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	s, rec := newSession(t, scenario(14, 10), WithStorage(store), WithRoller(combattest.Always(0)))
	_, err := s.Start()
	require.NoError(t, err)

	res, err := s.RunTurn(railgun)
	require.NoError(t, err)
	require.True(t, res.State.GameOver)
	assert.True(t, s.Ended())

	over := rec.ofType(core.EventGameOver)
	require.Len(t, over, 1)
	assert.Equal(t, core.GameOver{Winner: core.SidePlayer, TurnNumber: 1}, over[0].Data)

	meta := store.GetExportMetadata()
	assert.Equal(t, core.SidePlayer, meta.Winner)
	assert.Equal(t, 1, meta.Turns)

	_, err = s.RunTurn(pass)
	assert.ErrorIs(t, err, ErrGameOver)
	assert.NoError(t, s.End(), "ending a finished battle is a no-op")
}

func TestRunTurn_RecordFailureIsReported(t *testing.T) {
	store := failingStore{memory.New(config.MemoryConfig{})}
	s, rec := newSession(t, scenario(30, 100), WithStorage(store))
	_, err := s.Start()
	require.NoError(t, err)

	res, err := s.RunTurn(pass)
	require.NoError(t, err, "storage faults do not fail the turn")
	assert.Equal(t, 2, res.State.TurnNumber)

	errs := rec.ofType(core.EventErrorOccurred)
	require.Len(t, errs, 1)
	assert.Equal(t, core.ErrorOccurred{Error: "disk full", Context: ContextRunTurn}, errs[0].Data)
}

func TestReset_AbandonsAndRestarts(t *testing.T) {
	store := memory.New(config.MemoryConfig{})
	s, rec := newSession(t, scenario(30, 100), WithStorage(store))
	_, err := s.Start()
	require.NoError(t, err)
	first, _ := s.Battle()

	_, err = s.RunTurn(pass)
	require.NoError(t, err)

	st, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TurnNumber)
	assert.Equal(t, 30, st.Enemy.Distance)
	require.Len(t, st.Logs, 1)
	assert.Equal(t, "log-1", st.Logs[0].ID)

	second, _ := s.Battle()
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, s.Ended())
	assert.Len(t, rec.ofType(core.EventGameReset), 1)
}

func TestEnd_AbandonsBattle(t *testing.T) {
	store := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	s, _ := newSession(t, scenario(30, 100), WithStorage(store))
	_, err := s.Start()
	require.NoError(t, err)
	_, err = s.RunTurn(pass)
	require.NoError(t, err)

	require.NoError(t, s.End())
	assert.True(t, s.Ended())
	meta := store.GetExportMetadata()
	assert.Equal(t, 1, meta.Turns)
	assert.Equal(t, core.Side(""), meta.Winner)
}

func TestResume_ContinuesFromLastTurn(t *testing.T) {
	store := memory.New(config.MemoryConfig{})
	s, _ := newSession(t, scenario(30, 100), WithStorage(store))
	_, err := s.Start()
	require.NoError(t, err)
	_, err = s.RunTurn(pass)
	require.NoError(t, err)
	res, err := s.RunTurn(pass)
	require.NoError(t, err)
	battle, _ := s.Battle()

	other, _ := newSession(t, scenario(30, 100))
	st, err := other.Resume(store, battle.ID)
	require.NoError(t, err)
	assert.Equal(t, res.State.TurnNumber, st.TurnNumber)
	assert.Equal(t, res.State.Enemy.Distance, st.Enemy.Distance)

	next, err := other.RunTurn(pass)
	require.NoError(t, err)
	assert.Equal(t, st.TurnNumber+1, next.State.TurnNumber)

	last := st.Logs[len(st.Logs)-1].ID
	added := next.State.Logs[len(st.Logs):]
	require.NotEmpty(t, added)
	assert.NotEqual(t, last, added[0].ID)
}

func TestResume_UnknownBattle(t *testing.T) {
	s, _ := newSession(t, scenario(30, 100))
	_, err := s.Resume(memory.New(config.MemoryConfig{}), "nope")
	assert.Error(t, err)
}

func TestRunTurn_RejectsOverlap(t *testing.T) {
	s, _ := newSession(t, scenario(30, 100))
	_, err := s.Start()
	require.NoError(t, err)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	assert.True(t, s.Busy())

	_, err = s.RunTurn(pass)
	assert.ErrorIs(t, err, engine.ErrTurnInProgress)
	_, err = s.Reset()
	assert.ErrorIs(t, err, engine.ErrTurnInProgress)
	assert.ErrorIs(t, s.End(), engine.ErrTurnInProgress)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	_, err = s.RunTurn(pass)
	assert.NoError(t, err)
}

func TestSelectors(t *testing.T) {
	s, _ := newSession(t, scenario(14, 100))
	_, err := s.Start()
	require.NoError(t, err)

	assert.True(t, s.CanUseWeapon("railgun-1"))
	assert.Equal(t, "Ready to fire - Range: 18km, Damage: 45", s.WeaponTooltip("railgun-1"))

	assert.False(t, s.CanUseWeapon("laser-1"))
	assert.Equal(t, "Out of range (need ≤ 12 km)", s.WeaponTooltip("laser-1"))

	assert.False(t, s.CanUseWeapon("plasma-9"))
	assert.Equal(t, "Weapon not found", s.WeaponTooltip("plasma-9"))

	_, err = s.RunTurn(railgun)
	require.NoError(t, err)
	st := s.State()
	w, ok := st.Weapon("railgun-1")
	require.True(t, ok)
	require.Positive(t, w.Cooldown)
	assert.False(t, s.CanUseWeapon("railgun-1"))
	assert.Equal(t, fmt.Sprintf("Cooling down (%d turns)", w.Cooldown), s.WeaponTooltip("railgun-1"))

	// Evasion only lasts through the enemy phase, so set it directly.
	s.mu.Lock()
	s.state.Player.EvadeActive = true
	s.mu.Unlock()
	assert.Equal(t, "Cannot fire while evading", s.WeaponTooltip("missile-1"))
	assert.False(t, s.CanUseWeapon("missile-1"))
}

func TestFilteredLogs(t *testing.T) {
	s, _ := newSession(t, scenario(30, 100))
	_, err := s.Start()
	require.NoError(t, err)
	_, err = s.RunTurn(pass)
	require.NoError(t, err)

	all := s.FilteredLogs("all")
	assert.Equal(t, all, s.FilteredLogs(""))
	assert.Len(t, all, len(s.State().Logs))

	summary := s.FilteredLogs(string(core.LogSummary))
	require.NotEmpty(t, summary)
	for _, l := range summary {
		assert.Equal(t, core.LogSummary, l.Category)
	}
	assert.Empty(t, s.FilteredLogs("nonsense"))
}

func TestLogAttrs_UsableFromSessionLogger(t *testing.T) {
	var (
		buf bytes.Buffer
		mu  sync.Mutex
		s   *Session
	)
	provider := func() []slog.Attr {
		if s == nil {
			return nil
		}
		return s.LogAttrs()
	}
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, nil), provider))

	var err error
	s, err = New(
		WithScenario(scenario(30, 100)),
		WithRoller(combattest.Always(0.999)),
		WithLogger(logger),
		WithStorage(failingStore{memory.New(config.MemoryConfig{})}),
	)
	require.NoError(t, err)

	_, err = s.Start()
	require.NoError(t, err)
	// The failing store makes the session log while it holds its lock.
	_, err = s.RunTurn(pass)
	require.NoError(t, err)

	b, _ := s.Battle()
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "battle="+b.ID)
	assert.Contains(t, buf.String(), "failed to record turn")
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
