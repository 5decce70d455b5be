package convert

import (
	"encoding/json"
	"fmt"

	"github.com/broadside-sim/broadside/internal/model"
	"github.com/broadside-sim/broadside/pkg/core"
)

// BattleToCore converts a GORM Battle to a core.Battle.
func BattleToCore(b model.Battle) (core.Battle, error) {
	out := core.Battle{
		ID:        b.UUID,
		Scenario:  b.Scenario,
		EnemyName: b.EnemyName,
		StartedAt: b.StartedAt,
	}
	if len(b.Balance) > 0 {
		out.Balance = json.RawMessage(b.Balance)
	}
	if len(b.InitialState) > 0 {
		if err := json.Unmarshal(b.InitialState, &out.Initial); err != nil {
			return core.Battle{}, fmt.Errorf("unmarshal initial state of %s: %w", b.UUID, err)
		}
	}
	return out, nil
}

// OutcomeToCore returns the battle outcome, or false when it never ended.
func OutcomeToCore(b model.Battle) (core.BattleOutcome, bool) {
	if !b.EndedAt.Valid {
		return core.BattleOutcome{}, false
	}
	return core.BattleOutcome{
		BattleID: b.UUID,
		Winner:   core.Side(b.Winner),
		Reason:   core.EndReason(b.EndReason),
		Turns:    b.TurnsPlayed,
		EndedAt:  b.EndedAt.Time,
	}, true
}

// TurnRecordToCore converts a GORM TurnRecord and its events to a core.TurnRecord.
// Event data is returned as raw JSON.
func TurnRecordToCore(t model.TurnRecord, battleID string, events []model.EventRecord) (core.TurnRecord, error) {
	out := core.TurnRecord{
		BattleID:   battleID,
		TurnNumber: t.TurnNumber,
		RecordedAt: t.RecordedAt,
		Command:    core.Command{Type: core.CommandType(t.CommandType), WeaponID: t.WeaponID},
		Events:     make([]core.Event, 0, len(events)),
	}
	if err := json.Unmarshal(t.State, &out.State); err != nil {
		return core.TurnRecord{}, fmt.Errorf("unmarshal turn %d state: %w", t.TurnNumber, err)
	}
	for _, ev := range events {
		e := core.Event{
			Type:      core.EventType(ev.Type),
			Turn:      ev.TurnNumber,
			Timestamp: ev.Time,
		}
		if len(ev.Data) > 0 && string(ev.Data) != "null" {
			e.Data = json.RawMessage(ev.Data)
		}
		out.Events = append(out.Events, e)
	}
	return out, nil
}
