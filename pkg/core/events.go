// pkg/core/events.go
package core

import "time"

// EventType names an entry of the turn event trail.
type EventType string

const (
	EventTurnStart            EventType = "TURN_START"
	EventShipsMoved           EventType = "SHIPS_MOVED"
	EventMissileMoved         EventType = "MISSILE_MOVED"
	EventMissileLost          EventType = "MISSILE_LOST"
	EventMissileIntercepted   EventType = "MISSILE_INTERCEPTED"
	EventMissileImpact        EventType = "MISSILE_IMPACT"
	EventAlertRaised          EventType = "ALERT_RAISED"
	EventPlayerCommandIssued  EventType = "PLAYER_COMMAND_ISSUED"
	EventWeaponFired          EventType = "WEAPON_FIRED"
	EventWeaponMissed         EventType = "WEAPON_MISSED"
	EventMissileLaunched      EventType = "MISSILE_LAUNCHED"
	EventMissileCreated       EventType = "MISSILE_CREATED"
	EventEvadeActivated       EventType = "EVADE_ACTIVATED"
	EventTurnPassed           EventType = "TURN_PASSED"
	EventEnemyAction          EventType = "ENEMY_ACTION"
	EventEnemyMissileLaunched EventType = "ENEMY_MISSILE_LAUNCHED"
	EventEnemyMissileCreated  EventType = "ENEMY_MISSILE_CREATED"
	EventEnemyDirectFire      EventType = "ENEMY_DIRECT_FIRE"
	EventEnemyMissed          EventType = "ENEMY_MISSED"
	EventPlayerDamaged        EventType = "PLAYER_DAMAGED"
	EventEnemyDamaged         EventType = "ENEMY_DAMAGED"
	EventErrorOccurred        EventType = "ERROR_OCCURRED"
	EventSummaryReady         EventType = "SUMMARY_READY"

	// Emitted by the session, not by the turn pipeline.
	EventTurnComplete EventType = "TURN_COMPLETE"
	EventGameOver     EventType = "GAME_OVER"
	EventGameReset    EventType = "GAME_RESET"
)

// Event is one structured entry of the turn trail. Data holds one of the
// payload types below, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// TurnStart marks the beginning of a turn.
type TurnStart struct {
	TurnNumber int `json:"turnNumber"`
}

// ShipsMoved is emitted by the movement phase.
type ShipsMoved struct {
	PlayerSpeed   int `json:"playerSpeed"`
	EnemySpeed    int `json:"enemySpeed"`
	TotalMovement int `json:"totalMovement"`
	OldDistance   int `json:"oldDistance"`
	NewDistance   int `json:"newDistance"`
}

// MissileMoved reports a missile still in flight after advancing.
type MissileMoved struct {
	MissileID   string `json:"missileId"`
	Target      Side   `json:"target"`
	NewDistance int    `json:"newDistance"`
}

// MissileLost reports a missile that left the valid distance band.
type MissileLost struct {
	MissileID string `json:"missileId"`
	Distance  int    `json:"distance"`
}

// Interceptor names a point-defense tier.
type Interceptor string

const (
	InterceptorPD   Interceptor = "PD"
	InterceptorCIWS Interceptor = "CIWS"
)

// InterceptAttempt is one point-defense shot.
type InterceptAttempt struct {
	MissileID   string      `json:"missileId"`
	Interceptor Interceptor `json:"interceptor"`
	Success     bool        `json:"success"`
	Chance      float64     `json:"chance"`
}

// DamageResult breaks down one application of damage to the player.
type DamageResult struct {
	DamageDealt      float64   `json:"damageDealt"`
	ShieldsDamage    float64   `json:"shieldsDamage"`
	ArmorDamage      float64   `json:"armorDamage"`
	HullDamage       float64   `json:"hullDamage"`
	Side             HullSide  `json:"side"`
	SubsystemDamaged Subsystem `json:"subsystemDamaged,omitempty"`
	SubsystemDamage  float64   `json:"subsystemDamage,omitempty"`
}

// MissileImpact reports a missile reaching its target.
type MissileImpact struct {
	MissileID string        `json:"missileId"`
	Target    Side          `json:"target"`
	Damage    float64       `json:"damage"`
	Result    *DamageResult `json:"damageResult,omitempty"`
	EnemyHull float64       `json:"enemyHull,omitempty"`
}

// AlertLevel grades an alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// AlertKind identifies what crossed a threshold.
type AlertKind string

const (
	AlertShields   AlertKind = "shields"
	AlertHull      AlertKind = "hull"
	AlertSubsystem AlertKind = "subsystem"
)

// Alert is raised when damage pushes the ship past a threshold.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Kind      AlertKind  `json:"kind"`
	Shields   float64    `json:"shields,omitempty"`
	HullPort  float64    `json:"hullPort,omitempty"`
	HullStar  float64    `json:"hullStarboard,omitempty"`
	Subsystem Subsystem  `json:"subsystem,omitempty"`
}

// CommandIssued reports the outcome of the player's command.
type CommandIssued struct {
	Command Command `json:"command"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
}

// WeaponFired reports a direct-fire volley with at least one hit.
type WeaponFired struct {
	WeaponID    string  `json:"weaponId"`
	Hits        int     `json:"hits"`
	TotalDamage float64 `json:"totalDamage"`
	TargetHull  float64 `json:"targetHull"`
}

// WeaponMissed reports a direct-fire volley with no hits.
type WeaponMissed struct {
	WeaponID   string `json:"weaponId"`
	VolleySize int    `json:"volleySize"`
}

// MissileLaunched is the signal that a missile weapon fired. The
// orchestrator turns it into missile entities.
type MissileLaunched struct {
	WeaponID   string  `json:"weaponId"`
	VolleySize int     `json:"volleySize"`
	Damage     float64 `json:"damage"`
	Distance   int     `json:"distance,omitempty"`
}

// MissileCreated reports a missile entering flight.
type MissileCreated struct {
	Missile Missile `json:"missile"`
	ETA     int     `json:"eta"`
}

// EvadeActivated reports evasive maneuvers for this turn's enemy phase.
type EvadeActivated struct {
	Duration int `json:"duration"`
}

// EnemyActionType enumerates the non-firing enemy actions.
type EnemyActionType string

const (
	EnemyAttacksBlocked EnemyActionType = "attacks_blocked_by_evasion"
	EnemyWait           EnemyActionType = "wait"
)

// EnemyAction reports a non-firing enemy decision.
type EnemyAction struct {
	Action EnemyActionType `json:"actionType"`
	Reason string          `json:"reason,omitempty"`
}

// EnemyDirectFire reports an enemy volley with at least one hit.
type EnemyDirectFire struct {
	WeaponID    string  `json:"weaponId"`
	Hits        int     `json:"hits"`
	TotalDamage float64 `json:"totalDamage"`
}

// PlayerDamaged reports damage routed into the player by direct fire or a missile impact.
type PlayerDamaged struct {
	Source string       `json:"source"`
	Result DamageResult `json:"damageResult"`
}

// EnemyDamaged reports damage applied to the enemy hull by a missile.
type EnemyDamaged struct {
	Source string  `json:"source"`
	Damage float64 `json:"damage"`
	Hull   float64 `json:"hull"`
}

// ErrorOccurred reports a recoverable fault inside a turn.
type ErrorOccurred struct {
	Error   string `json:"error"`
	Context string `json:"context"`
}

// TurnSummary is the report appended at the end of every turn.
type TurnSummary struct {
	TurnNumber     int     `json:"turnNumber"`
	PlayerHull     float64 `json:"playerHull"`
	PlayerShields  float64 `json:"playerShields"`
	EnemyHull      float64 `json:"enemyHull"`
	Distance       int     `json:"distance"`
	ActiveMissiles int     `json:"activeMissiles"`
	GameOver       bool    `json:"gameOver"`
	Winner         Side    `json:"winner,omitempty"`
}

// GameOver is emitted by the session when a battle ends.
type GameOver struct {
	Winner     Side `json:"winner"`
	TurnNumber int  `json:"turnNumber"`
}
