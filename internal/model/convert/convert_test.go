package convert

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/broadside-sim/broadside/internal/model"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTurn() core.TurnRecord {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	st := core.GameState{TurnNumber: 4, GameOver: true, Winner: core.SidePlayer}
	st.Player.Hull = core.Hull{Port: 80, Starboard: 95}
	st.Player.Shields = 45
	st.Enemy.Hull = 0
	st.Enemy.Distance = 3
	st.Missiles = []core.Missile{{ID: "M2-1", Target: core.SideEnemy}}

	return core.TurnRecord{
		BattleID:   "b-9",
		TurnNumber: 3,
		Command:    core.Command{Type: core.CommandFireRailgun, WeaponID: "railgun-1"},
		Events: []core.Event{
			{Type: core.EventTurnStart, Turn: 3, Timestamp: at, Data: core.TurnStart{TurnNumber: 3}},
			{Type: core.EventTurnPassed, Turn: 3, Timestamp: at},
		},
		State:      st,
		RecordedAt: at,
	}
}

func TestCoreToTurnRecord_Columns(t *testing.T) {
	rec, err := CoreToTurnRecord(sampleTurn())
	require.NoError(t, err)

	assert.Equal(t, 3, rec.TurnNumber)
	assert.Equal(t, "fire-railgun", rec.CommandType)
	assert.Equal(t, "railgun-1", rec.WeaponID)
	assert.Equal(t, 3, rec.Distance)
	assert.Equal(t, 80.0, rec.HullPort)
	assert.Equal(t, 95.0, rec.HullStarboard)
	assert.Equal(t, 45.0, rec.Shields)
	assert.Equal(t, 1, rec.Missiles)
	assert.True(t, rec.GameOver)
	assert.Zero(t, rec.BattleID)
}

func TestCoreToEventRecords(t *testing.T) {
	recs := CoreToEventRecords(sampleTurn())
	require.Len(t, recs, 2)

	assert.Equal(t, 0, recs[0].Seq)
	assert.Equal(t, "TURN_START", recs[0].Type)
	assert.JSONEq(t, `{"turnNumber":3}`, string(recs[0].Data))
	assert.Equal(t, 1, recs[1].Seq)
	assert.Equal(t, "null", string(recs[1].Data))
}

func TestTurnRecordToCore_RestoresState(t *testing.T) {
	in := sampleTurn()
	rec, err := CoreToTurnRecord(in)
	require.NoError(t, err)

	out, err := TurnRecordToCore(rec, "b-9", CoreToEventRecords(in))
	require.NoError(t, err)

	assert.Equal(t, in.State, out.State)
	assert.Equal(t, in.Command, out.Command)
	require.Len(t, out.Events, 2)
	assert.Equal(t, core.EventTurnStart, out.Events[0].Type)
	assert.JSONEq(t, `{"turnNumber":3}`, string(out.Events[0].Data.(json.RawMessage)))
	assert.Nil(t, out.Events[1].Data)
}

func TestTurnRecordToCore_BadState(t *testing.T) {
	_, err := TurnRecordToCore(model.TurnRecord{TurnNumber: 2, State: []byte("{")}, "b", nil)
	assert.ErrorContains(t, err, "unmarshal turn 2 state")
}

func TestBattleConversion(t *testing.T) {
	in := core.Battle{
		ID:        "b-9",
		Scenario:  "Skirmish",
		EnemyName: "Raider",
		StartedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Balance:   json.RawMessage(`{"pdShotsPerTurn":2}`),
		Initial:   core.GameState{TurnNumber: 1, Weapons: []core.Weapon{{ID: "laser-1", Range: 12}}},
	}

	m := CoreToBattle(in)
	assert.Equal(t, "b-9", m.UUID)
	assert.Zero(t, m.ID)

	out, err := BattleToCore(m)
	require.NoError(t, err)
	assert.Equal(t, in.Initial, out.Initial)
	assert.JSONEq(t, `{"pdShotsPerTurn":2}`, string(out.Balance))

	_, ended := OutcomeToCore(m)
	assert.False(t, ended)

	m.EndedAt = sql.NullTime{Time: in.StartedAt.Add(time.Minute), Valid: true}
	m.Winner = "enemy"
	m.EndReason = "destroyed"
	m.TurnsPlayed = 7
	o, ended := OutcomeToCore(m)
	require.True(t, ended)
	assert.Equal(t, core.SideEnemy, o.Winner)
	assert.Equal(t, 7, o.Turns)
}

func TestCoreToBattle_EmptyBalance(t *testing.T) {
	m := CoreToBattle(core.Battle{ID: "x"})
	assert.Equal(t, "{}", string(m.Balance))
}
