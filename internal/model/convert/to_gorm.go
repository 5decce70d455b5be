// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/broadside-sim/broadside/internal/model"
	"github.com/broadside-sim/broadside/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column, falling back to "null".
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

// CoreToBattle converts a core.Battle to a GORM model.Battle.
// core.Battle.ID maps to GORM Battle.UUID; the row ID is DB-assigned.
func CoreToBattle(b core.Battle) model.Battle {
	balance := datatypes.JSON("{}")
	if len(b.Balance) > 0 {
		balance = datatypes.JSON(b.Balance)
	}
	return model.Battle{
		UUID:         b.ID,
		Scenario:     b.Scenario,
		EnemyName:    b.EnemyName,
		StartedAt:    b.StartedAt,
		Balance:      balance,
		InitialState: toJSON(b.Initial),
	}
}

// CoreToTurnRecord converts a core.TurnRecord to a GORM model.TurnRecord.
// BattleID is left zero for the writer to stamp.
func CoreToTurnRecord(t core.TurnRecord) (model.TurnRecord, error) {
	state, err := json.Marshal(t.State)
	if err != nil {
		return model.TurnRecord{}, fmt.Errorf("marshal turn %d state: %w", t.TurnNumber, err)
	}
	st := t.State
	return model.TurnRecord{
		TurnNumber:    t.TurnNumber,
		RecordedAt:    t.RecordedAt,
		CommandType:   string(t.Command.Type),
		WeaponID:      t.Command.WeaponID,
		Distance:      st.Enemy.Distance,
		HullPort:      st.Player.Hull.Port,
		HullStarboard: st.Player.Hull.Starboard,
		Shields:       st.Player.Shields,
		EnemyHull:     st.Enemy.Hull,
		Missiles:      len(st.Missiles),
		GameOver:      st.GameOver,
		State:         datatypes.JSON(state),
	}, nil
}

// CoreToEventRecords converts a turn's event trail, numbering events from 0.
func CoreToEventRecords(t core.TurnRecord) []model.EventRecord {
	out := make([]model.EventRecord, 0, len(t.Events))
	for i, ev := range t.Events {
		rec := model.EventRecord{
			TurnNumber: t.TurnNumber,
			Seq:        i,
			Time:       ev.Timestamp,
			Type:       string(ev.Type),
			Data:       datatypes.JSON("null"),
		}
		if ev.Data != nil {
			rec.Data = toJSON(ev.Data)
		}
		out = append(out, rec)
	}
	return out
}
