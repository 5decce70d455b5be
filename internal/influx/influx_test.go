package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turnRecord() *core.TurnRecord {
	return &core.TurnRecord{
		BattleID:   "b-1",
		TurnNumber: 3,
		Command:    core.Command{Type: core.CommandFireLaser, WeaponID: "laser-1"},
		Events:     []core.Event{{Type: core.EventTurnStart}, {Type: core.EventSummaryReady}},
		State: core.GameState{
			TurnNumber: 3,
			Player: core.Player{
				Hull:    core.Hull{Port: 80, Starboard: 95},
				Shields: 40,
			},
			Enemy: core.Enemy{Hull: 55, Distance: 12},
			Missiles: []core.Missile{
				{ID: "M1-1", Target: core.SideEnemy},
				{ID: "M2-1", Target: core.SidePlayer},
				{ID: "M2-2", Target: core.SidePlayer},
			},
		},
		RecordedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestTurnPoint(t *testing.T) {
	p := TurnPoint(turnRecord())
	assert.Equal(t, MeasurementTurn, p.Name())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"battle": "b-1", "command": "fire-laser"}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(1), fields["player_missiles"])
	assert.Equal(t, int64(2), fields["enemy_missiles"])
	assert.Equal(t, int64(12), fields["distance"])
	assert.Equal(t, 40.0, fields["shields"])
	assert.Equal(t, int64(2), fields["events"])
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), p.Time())
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "backup.lp.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{
		Enabled:    true,
		URL:        "http://127.0.0.1:1",
		Org:        "broadside",
		Bucket:     "battle_metrics",
		BackupPath: path,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	m.ObserveTurn(turnRecord())
	require.NoError(t, m.Close())

	out := readBackup(t, path)
	assert.Contains(t, out, "turn,battle=b-1,command=fire-laser ")
	assert.Contains(t, out, "enemy_missiles=2i")
	assert.Contains(t, out, "shields=40")
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.Error(t, m.WritePoint(TurnPoint(turnRecord())))
	assert.NoError(t, m.Close())
}

func TestOpenBackup_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.lp.gz")
	cfg := config.InfluxConfig{BackupPath: path}

	first := NewManager(zerolog.Nop(), cfg)
	require.NoError(t, first.OpenBackup())
	first.ObserveTurn(turnRecord())
	require.NoError(t, first.Close())

	second := NewManager(zerolog.Nop(), cfg)
	require.NoError(t, second.OpenBackup())
	rec := turnRecord()
	rec.BattleID = "b-2"
	second.ObserveTurn(rec)
	require.NoError(t, second.Close())

	// gzip readers continue across concatenated members.
	out := readBackup(t, path)
	assert.Contains(t, out, "battle=b-1")
	assert.Contains(t, out, "battle=b-2")
}

func TestOpenBackup_NoPath(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	assert.Error(t, m.OpenBackup())
}
