package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Battle{},
	&TurnRecord{},
	&EventRecord{},
	&WriterPerformance{},
}

// Battle is one recorded engagement.
type Battle struct {
	gorm.Model
	UUID         string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Scenario     string         `json:"scenario" gorm:"size:127"`
	EnemyName    string         `json:"enemyName" gorm:"size:127"`
	StartedAt    time.Time      `json:"startedAt"`
	EndedAt      sql.NullTime   `json:"endedAt"`
	Winner       string         `json:"winner" gorm:"size:16"`
	EndReason    string         `json:"endReason" gorm:"size:16"`
	TurnsPlayed  int            `json:"turnsPlayed"`
	Balance      datatypes.JSON `json:"balance"`
	InitialState datatypes.JSON `json:"initialState"`
}

func (*Battle) TableName() string {
	return "battles"
}

// TurnRecord holds the snapshot after one resolved turn. The scalar
// columns duplicate parts of State for querying.
type TurnRecord struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement"`
	BattleID      uint           `json:"battleId" gorm:"index:idx_turn_battle_turn,priority:1"`
	Battle        Battle         `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	TurnNumber    int            `json:"turnNumber" gorm:"index:idx_turn_battle_turn,priority:2"`
	RecordedAt    time.Time      `json:"recordedAt"`
	CommandType   string         `json:"commandType" gorm:"size:32"`
	WeaponID      string         `json:"weaponId" gorm:"size:64"`
	Distance      int            `json:"distance"`
	HullPort      float64        `json:"hullPort"`
	HullStarboard float64        `json:"hullStarboard"`
	Shields       float64        `json:"shields"`
	EnemyHull     float64        `json:"enemyHull"`
	Missiles      int            `json:"missiles"`
	GameOver      bool           `json:"gameOver"`
	State         datatypes.JSON `json:"state"`
}

func (*TurnRecord) TableName() string {
	return "turn_records"
}

// EventRecord is one entry of a turn's event trail.
type EventRecord struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	BattleID   uint           `json:"battleId" gorm:"index:idx_event_battle_turn,priority:1"`
	Battle     Battle         `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:BattleID;"`
	TurnNumber int            `json:"turnNumber" gorm:"index:idx_event_battle_turn,priority:2"`
	Seq        int            `json:"seq"`
	Time       time.Time      `json:"time"`
	Type       string         `json:"type" gorm:"size:48;index:idx_event_type"`
	Data       datatypes.JSON `json:"data"`
}

func (*EventRecord) TableName() string {
	return "event_records"
}

// WriterPerformance samples the background DB writer.
type WriterPerformance struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time                time.Time `json:"time" gorm:"index:idx_writer_time"`
	BattleID            uint      `json:"battleId"`
	QueuedTurns         int       `json:"queuedTurns"`
	QueuedEvents        int       `json:"queuedEvents"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*WriterPerformance) TableName() string {
	return "writer_performances"
}
