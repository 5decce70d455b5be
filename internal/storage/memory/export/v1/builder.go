package v1

import (
	"time"

	"github.com/broadside-sim/broadside/pkg/core"
)

// BattleData contains all the data needed to build an export
type BattleData struct {
	Battle  *core.Battle
	Turns   []core.TurnRecord
	Outcome *core.BattleOutcome
}

// Build creates an Export from the battle data
func Build(data *BattleData) Export {
	export := Export{
		Version:   FormatVersion,
		BattleID:  data.Battle.ID,
		Scenario:  data.Battle.Scenario,
		EnemyName: data.Battle.EnemyName,
		StartedAt: formatTime(data.Battle.StartedAt),
		Balance:   data.Battle.Balance,
		Initial:   data.Battle.Initial,
		Timeline:  make([]Turn, 0, len(data.Turns)),
		Log:       make([]core.LogEntry, 0),
	}

	if data.Outcome != nil {
		export.EndedAt = formatTime(data.Outcome.EndedAt)
		export.Winner = string(data.Outcome.Winner)
		export.Reason = string(data.Outcome.Reason)
		export.Turns = data.Outcome.Turns
	}

	for _, rec := range data.Turns {
		st := rec.State
		row := Turn{
			Turn:          rec.TurnNumber,
			Command:       string(rec.Command.Type),
			WeaponID:      rec.Command.WeaponID,
			Distance:      st.Enemy.Distance,
			HullPort:      st.Player.Hull.Port,
			HullStarboard: st.Player.Hull.Starboard,
			Shields:       st.Player.Shields,
			EnemyHull:     st.Enemy.Hull,
			Missiles:      len(st.Missiles),
			Events:        make([][]any, 0, len(rec.Events)),
		}
		for _, ev := range rec.Events {
			row.Events = append(row.Events, []any{string(ev.Type), ev.Data})
		}
		export.Timeline = append(export.Timeline, row)
	}

	// The last snapshot carries the full log; fall back to the initial one.
	if n := len(data.Turns); n > 0 {
		export.Log = append(export.Log, data.Turns[n-1].State.Logs...)
	} else {
		export.Log = append(export.Log, data.Battle.Initial.Logs...)
	}
	if export.Turns == 0 {
		export.Turns = len(data.Turns)
	}

	return export
}

// Metadata summarizes the battle for an archive upload.
func Metadata(data *BattleData) core.UploadMetadata {
	meta := core.UploadMetadata{
		BattleName: data.Battle.Scenario,
		EnemyName:  data.Battle.EnemyName,
		Turns:      len(data.Turns),
	}
	if data.Outcome != nil {
		meta.Winner = data.Outcome.Winner
		meta.Turns = data.Outcome.Turns
		meta.Duration = data.Outcome.EndedAt.Sub(data.Battle.StartedAt).Seconds()
	}
	return meta
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
