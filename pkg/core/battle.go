// pkg/core/battle.go
package core

import (
	"encoding/json"
	"time"
)

// EndReason records why a battle stopped being recorded.
type EndReason string

const (
	EndDestroyed EndReason = "destroyed"
	EndAbandoned EndReason = "abandoned"
)

// Battle identifies one recorded engagement.
type Battle struct {
	ID        string          `json:"id"`
	Scenario  string          `json:"scenario"`
	EnemyName string          `json:"enemyName"`
	StartedAt time.Time       `json:"startedAt"`
	Balance   json.RawMessage `json:"balance,omitempty"`
	Initial   GameState       `json:"initial"`
}

// TurnRecord is everything one resolved turn produced.
type TurnRecord struct {
	BattleID   string    `json:"battleId"`
	TurnNumber int       `json:"turnNumber"`
	Command    Command   `json:"command"`
	Events     []Event   `json:"events"`
	State      GameState `json:"state"`
	RecordedAt time.Time `json:"recordedAt"`
}

// BattleOutcome closes a battle.
type BattleOutcome struct {
	BattleID string    `json:"battleId"`
	Winner   Side      `json:"winner,omitempty"`
	Reason   EndReason `json:"reason"`
	Turns    int       `json:"turns"`
	EndedAt  time.Time `json:"endedAt"`
}

// UploadMetadata accompanies an exported battle file sent to an archive server.
type UploadMetadata struct {
	BattleName string  `json:"battleName"`
	EnemyName  string  `json:"enemyName"`
	Winner     Side    `json:"winner"`
	Turns      int     `json:"turns"`
	Duration   float64 `json:"duration"`
}
