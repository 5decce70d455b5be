// internal/storage/memory/memory_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/broadside-sim/broadside/internal/config"
	v1 "github.com/broadside-sim/broadside/internal/storage/memory/export/v1"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBattle() *core.Battle {
	return &core.Battle{
		ID:        "battle-1",
		Scenario:  "Pirate Ambush",
		EnemyName: "Pirate CV",
		StartedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Initial:   core.GameState{TurnNumber: 1, Weapons: []core.Weapon{{ID: "laser-1"}}},
	}
}

func testTurn(n int) *core.TurnRecord {
	return &core.TurnRecord{
		BattleID:   "battle-1",
		TurnNumber: n,
		Command:    core.Command{Type: core.CommandPass},
		Events:     []core.Event{{Type: core.EventTurnPassed, Turn: n}},
		State:      core.GameState{TurnNumber: n + 1},
	}
}

func TestRecordTurn_RequiresBattle(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.RecordTurn(testTurn(1)), ErrNoBattle)
	assert.ErrorIs(t, b.EndBattle(&core.BattleOutcome{}), ErrNoBattle)
}

func TestStartBattle_ResetsTurns(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartBattle(testBattle()))
	require.NoError(t, b.RecordTurn(testTurn(1)))
	require.NoError(t, b.RecordTurn(testTurn(2)))
	assert.Equal(t, 2, b.TurnCount())

	require.NoError(t, b.StartBattle(testBattle()))
	assert.Zero(t, b.TurnCount())
}

func TestRecordTurn_CopiesInput(t *testing.T) {
	b := New(config.MemoryConfig{})
	battle := testBattle()
	require.NoError(t, b.StartBattle(battle))
	battle.Initial.Weapons[0].ID = "changed"

	rec := testTurn(1)
	rec.State.Weapons = []core.Weapon{{ID: "railgun-1"}}
	require.NoError(t, b.RecordTurn(rec))
	rec.State.Weapons[0].Cooldown = 9

	got, turns, err := b.LoadBattle("battle-1")
	require.NoError(t, err)
	assert.Equal(t, "laser-1", got.Initial.Weapons[0].ID)
	require.Len(t, turns, 1)
	assert.Zero(t, turns[0].State.Weapons[0].Cooldown)
}

func TestLoadBattle_UnknownID(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartBattle(testBattle()))

	_, _, err := b.LoadBattle("other")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEndBattle_NoOutputDirSkipsExport(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartBattle(testBattle()))
	require.NoError(t, b.EndBattle(&core.BattleOutcome{BattleID: "battle-1", Reason: core.EndAbandoned}))
	assert.Empty(t, b.GetExportedFilePath())
}

func TestEndBattle_ExportsGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.StartBattle(testBattle()))
	require.NoError(t, b.RecordTurn(testTurn(1)))

	outcome := &core.BattleOutcome{
		BattleID: "battle-1",
		Winner:   core.SideEnemy,
		Reason:   core.EndDestroyed,
		Turns:    1,
		EndedAt:  time.Date(2026, 1, 15, 10, 31, 0, 0, time.UTC),
	}
	require.NoError(t, b.EndBattle(outcome))

	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Pirate_Ambush_20260115_103000.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var exp v1.Export
	require.NoError(t, json.NewDecoder(gz).Decode(&exp))
	assert.Equal(t, "battle-1", exp.BattleID)
	assert.Equal(t, "enemy", exp.Winner)
	assert.Len(t, exp.Timeline, 1)

	meta := b.GetExportMetadata()
	assert.Equal(t, "Pirate Ambush", meta.BattleName)
	assert.Equal(t, 60.0, meta.Duration)
}

func TestEndBattle_ExportsPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.StartBattle(testBattle()))
	require.NoError(t, b.EndBattle(&core.BattleOutcome{BattleID: "battle-1", Reason: core.EndAbandoned}))

	path := b.GetExportedFilePath()
	assert.True(t, strings.HasSuffix(path, ".json"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reason":"abandoned"`)
}
