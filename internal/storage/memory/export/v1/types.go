// Package v1 contains the v1 export format for recorded battles.
package v1

import (
	"encoding/json"

	"github.com/broadside-sim/broadside/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version   int             `json:"version"`
	BattleID  string          `json:"battleId"`
	Scenario  string          `json:"scenario"`
	EnemyName string          `json:"enemyName"`
	StartedAt string          `json:"startedAt"`
	EndedAt   string          `json:"endedAt"`
	Winner    string          `json:"winner"`
	Reason    string          `json:"reason"`
	Turns     int             `json:"turns"`
	Balance   json.RawMessage `json:"balance,omitempty"`
	Initial   core.GameState  `json:"initial"`
	Timeline  []Turn          `json:"timeline"`
	Log       []core.LogEntry `json:"log"`
}

// Turn is one row of the battle timeline.
// Events are compact arrays: [type, data].
type Turn struct {
	Turn          int     `json:"turn"`
	Command       string  `json:"command"`
	WeaponID      string  `json:"weaponId,omitempty"`
	Distance      int     `json:"distance"`
	HullPort      float64 `json:"hullPort"`
	HullStarboard float64 `json:"hullStarboard"`
	Shields       float64 `json:"shields"`
	EnemyHull     float64 `json:"enemyHull"`
	Missiles      int     `json:"missiles"`
	Events        [][]any `json:"events"`
}
