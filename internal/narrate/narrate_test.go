package narrate

import (
	"testing"
	"time"

	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrate_IDsAndSkips(t *testing.T) {
	n := New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []core.Event{
		{Type: core.EventTurnStart, Turn: 1, Timestamp: at, Data: core.TurnStart{TurnNumber: 1}},
		{Type: core.EventShipsMoved, Turn: 1, Timestamp: at, Data: core.ShipsMoved{OldDistance: 30, NewDistance: 21, TotalMovement: 9}},
		{Type: core.EventPlayerCommandIssued, Turn: 1, Timestamp: at, Data: core.CommandIssued{Success: true}},
		{Type: core.EventTurnPassed, Turn: 1, Timestamp: at},
	}

	logs := n.Narrate(events)
	require.Len(t, logs, 2)
	assert.Equal(t, "log-1", logs[0].ID)
	assert.Equal(t, "Ships closing - Distance: 30km → 21km (−9km)", logs[0].Text)
	assert.Equal(t, core.LogTactical, logs[0].Category)
	assert.Equal(t, at, logs[0].Timestamp)
	assert.Equal(t, 1, logs[0].TurnNumber)
	assert.Equal(t, "log-2", logs[1].ID)

	more := n.Narrate(events[1:2])
	assert.Equal(t, "log-3", more[0].ID)

	n.Reset()
	assert.Equal(t, "log-1", n.Opening(30, at).ID)
}

func TestOpening(t *testing.T) {
	e := New().Opening(30, time.Time{})
	assert.Equal(t, "Battle stations! Enemy vessel detected at 30km.", e.Text)
	assert.Equal(t, core.LogSummary, e.Category)
	assert.Equal(t, 0, e.TurnNumber)
}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		ev   core.Event
		cat  core.LogCategory
		text string
	}{
		{"intercept hit", core.Event{Data: core.InterceptAttempt{MissileID: "M1-1", Interceptor: core.InterceptorCIWS, Success: true}}, core.LogMissile, "CIWS intercepted M1-1"},
		{"intercept miss", core.Event{Data: core.InterceptAttempt{MissileID: "M1-2", Interceptor: core.InterceptorPD}}, core.LogMissile, "PD missed M1-2"},
		{"missile moved", core.Event{Data: core.MissileMoved{MissileID: "M1-1", NewDistance: 20}}, core.LogMissile, "M1-1 closing - distance: 20km"},
		{"volley", core.Event{Type: core.EventWeaponFired, Data: core.WeaponFired{Hits: 2, TotalDamage: 50}}, core.LogTactical, "2 hits for 50 damage"},
		{"launch", core.Event{Type: core.EventMissileLaunched, Data: core.MissileLaunched{VolleySize: 2}}, core.LogMissile, "Launched 2 missiles"},
		{"enemy launch", core.Event{Type: core.EventEnemyMissileLaunched, Data: core.MissileLaunched{VolleySize: 2}}, core.LogEnemy, "Enemy launched 2 missiles"},
		{"blocked", core.Event{Data: core.EnemyAction{Action: core.EnemyAttacksBlocked}}, core.LogTactical, "Enemy attacks blocked by evasion"},
		{"wait", core.Event{Data: core.EnemyAction{Action: core.EnemyWait}}, core.LogEnemy, "Enemy action: wait"},
		{"enemy hits", core.Event{Data: core.EnemyDirectFire{Hits: 1, TotalDamage: 20}}, core.LogEnemy, "Enemy scored 1 hits for 20 damage"},
		{"enemy missed", core.Event{Type: core.EventEnemyMissed, Data: core.WeaponMissed{VolleySize: 1}}, core.LogEnemy, "Enemy fire missed - 0/1 hits"},
		{"shields alert", core.Event{Data: core.Alert{Kind: core.AlertShields, Shields: 12.6}}, core.LogAlerts, "⚠️ Shields critical: 13%"},
		{"hull alert", core.Event{Data: core.Alert{Kind: core.AlertHull, HullPort: 10, HullStar: 25.5}}, core.LogAlerts, "🚨 Hull breach detected! Port: 10% Star: 25.5%"},
		{"subsystem alert", core.Event{Data: core.Alert{Kind: core.AlertSubsystem, Subsystem: core.SubsystemEngines}}, core.LogAlerts, "⚙️ engines system damaged!"},
		{"failed command", core.Event{Data: core.CommandIssued{Message: "Railgun out of range (need ≤ 18 km)"}}, core.LogTactical, "Command failed: Railgun out of range (need ≤ 18 km)"},
		{"error", core.Event{Data: core.ErrorOccurred{Error: "boom", Context: "player_command_execution"}}, core.LogAlerts, "Error during player_command_execution: boom"},
		{"summary", core.Event{Data: core.TurnSummary{TurnNumber: 3, PlayerHull: 200, PlayerShields: 73.333, Distance: 3}}, core.LogSummary, "Turn 3 - Hull: 200/200, Shields: 73.3%, Distance: 3km"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, _, text, ok := Line(tt.ev)
			require.True(t, ok)
			assert.Equal(t, tt.cat, cat)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestLine_Unrendered(t *testing.T) {
	_, _, _, ok := Line(core.Event{Type: core.EventTurnStart, Data: core.TurnStart{TurnNumber: 1}})
	assert.False(t, ok)
}

func TestResume_ContinuesNumbering(t *testing.T) {
	n := New()
	n.Resume([]core.LogEntry{{ID: "log-3"}, {ID: "log-12"}, {ID: "other"}})
	assert.Equal(t, "log-13", n.Opening(10, time.Time{}).ID)

	n.Resume(nil)
	assert.Equal(t, "log-1", n.Opening(10, time.Time{}).ID)
}
