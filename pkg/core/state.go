// pkg/core/state.go
package core

import "time"

// Side identifies one of the two combatants.
type Side string

const (
	SidePlayer Side = "player"
	SideEnemy  Side = "enemy"
)

// HullSide selects the port or starboard half of the player's ship.
type HullSide string

const (
	Port      HullSide = "port"
	Starboard HullSide = "starboard"
)

// Hull holds two independent damage pools (0-100 each).
type Hull struct {
	Port      float64 `json:"port" yaml:"port"`
	Starboard float64 `json:"starboard" yaml:"starboard"`
}

// Get returns the pool for the given side.
func (h *Hull) Get(side HullSide) float64 {
	if side == Starboard {
		return h.Starboard
	}
	return h.Port
}

// Set assigns the pool for the given side.
func (h *Hull) Set(side HullSide, v float64) {
	if side == Starboard {
		h.Starboard = v
		return
	}
	h.Port = v
}

// Total returns port + starboard.
func (h Hull) Total() float64 {
	return h.Port + h.Starboard
}

// ArmorSide is one armor belt. Absorb is scaled by Integrity/100.
type ArmorSide struct {
	Integrity float64 `json:"integrity" yaml:"integrity"`
	Absorb    float64 `json:"absorb" yaml:"absorb"`
}

// Armor holds the port and starboard belts.
type Armor struct {
	Port      ArmorSide `json:"port" yaml:"port"`
	Starboard ArmorSide `json:"starboard" yaml:"starboard"`
}

// Side returns a pointer to the belt on the given side.
func (a *Armor) Side(side HullSide) *ArmorSide {
	if side == Starboard {
		return &a.Starboard
	}
	return &a.Port
}

// Subsystem names one of the five ship subsystems.
type Subsystem string

const (
	SubsystemWeapons      Subsystem = "weapons"
	SubsystemEngines      Subsystem = "engines"
	SubsystemSensors      Subsystem = "sensors"
	SubsystemLifeSupport  Subsystem = "lifeSupport"
	SubsystemPointDefense Subsystem = "pointDefense"
)

// AllSubsystems lists subsystems in their canonical order.
var AllSubsystems = []Subsystem{
	SubsystemWeapons,
	SubsystemEngines,
	SubsystemSensors,
	SubsystemLifeSupport,
	SubsystemPointDefense,
}

// Systems holds subsystem health, 0-100 each.
type Systems struct {
	Weapons      float64 `json:"weapons" yaml:"weapons"`
	Engines      float64 `json:"engines" yaml:"engines"`
	Sensors      float64 `json:"sensors" yaml:"sensors"`
	LifeSupport  float64 `json:"lifeSupport" yaml:"lifeSupport"`
	PointDefense float64 `json:"pointDefense" yaml:"pointDefense"`
}

// Ptr returns a pointer to the named subsystem's health, or nil for an unknown name.
func (s *Systems) Ptr(name Subsystem) *float64 {
	switch name {
	case SubsystemWeapons:
		return &s.Weapons
	case SubsystemEngines:
		return &s.Engines
	case SubsystemSensors:
		return &s.Sensors
	case SubsystemLifeSupport:
		return &s.LifeSupport
	case SubsystemPointDefense:
		return &s.PointDefense
	}
	return nil
}

// CrewMember is a single officer.
type CrewMember struct {
	Skill  float64 `json:"skill" yaml:"skill"`
	Active bool    `json:"active" yaml:"active"`
}

// Crew holds the bridge officers.
type Crew struct {
	TacticalOfficer CrewMember `json:"tacticalOfficer" yaml:"tacticalOfficer"`
	ChiefEngineer   CrewMember `json:"chiefEngineer" yaml:"chiefEngineer"`
	DamageControl   CrewMember `json:"damageControl" yaml:"damageControl"`
}

// Player is the player's vessel.
type Player struct {
	Speed            int     `json:"speed" yaml:"speed"`
	Hull             Hull    `json:"hull" yaml:"hull"`
	Armor            Armor   `json:"armor" yaml:"armor"`
	Shields          float64 `json:"shields" yaml:"shields"`
	Systems          Systems `json:"systems" yaml:"systems"`
	Crew             Crew    `json:"crew" yaml:"crew"`
	EvadeActive      bool    `json:"evadeActive" yaml:"evadeActive"`
	PDShotsRemaining int     `json:"pdShotsRemaining" yaml:"pdShotsRemaining"`
}

// Destroyed reports whether both hull pools are gone.
func (p *Player) Destroyed() bool {
	return p.Hull.Port <= 0 && p.Hull.Starboard <= 0
}

// WeaponType classifies a weapon.
type WeaponType string

const (
	WeaponLaser   WeaponType = "laser"
	WeaponRailgun WeaponType = "railgun"
	WeaponMissile WeaponType = "missile"
)

// Weapon is a mount on either ship. Cooldown counts down to 0 (ready).
type Weapon struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Label       string     `json:"label" yaml:"label"`
	Type        WeaponType `json:"type" yaml:"type"`
	Damage      float64    `json:"damage" yaml:"damage"`
	Range       int        `json:"range" yaml:"range"`
	Cooldown    int        `json:"cooldown" yaml:"cooldown"`
	CooldownMax int        `json:"cooldownMax" yaml:"cooldownMax"`
	VolleySize  int        `json:"volleySize,omitempty" yaml:"volleySize,omitempty"`
}

// Ready reports whether the weapon can fire this turn.
func (w *Weapon) Ready() bool {
	return w.Cooldown <= 0
}

// Volley returns the configured volley size, defaulting to 1.
func (w *Weapon) Volley() int {
	if w.VolleySize <= 0 {
		return 1
	}
	return w.VolleySize
}

// Enemy is the AI ship. It has a single hull pool.
type Enemy struct {
	Name              string   `json:"name" yaml:"name"`
	Hull              float64  `json:"hull" yaml:"hull"`
	Distance          int      `json:"distance" yaml:"distance"`
	Speed             int      `json:"speed" yaml:"speed"`
	MissileRange      int      `json:"missileRange" yaml:"missileRange"`
	DirectRange       int      `json:"directRange" yaml:"directRange"`
	MissileVolleySize int      `json:"missileVolleySize" yaml:"missileVolleySize"`
	Weapons           []Weapon `json:"weapons" yaml:"weapons"`
}

// Missile is a projectile in flight. Distance is the range left to its target.
type Missile struct {
	ID              string  `json:"id"`
	Target          Side    `json:"target"`
	Distance        int     `json:"distance"`
	Damage          float64 `json:"damage"`
	Speed           int     `json:"speed"`
	GuidanceQuality float64 `json:"guidanceQuality"`
	EvasionRating   float64 `json:"evasionRating"`
}

// LogCategory groups log entries for presentation.
type LogCategory string

const (
	LogTactical    LogCategory = "tactical"
	LogMissile     LogCategory = "missile"
	LogEngineering LogCategory = "engineering"
	LogEnemy       LogCategory = "enemy"
	LogAlerts      LogCategory = "alerts"
	LogSummary     LogCategory = "summary"
)

// LogEntry is one human-readable line of the battle log.
type LogEntry struct {
	ID         string      `json:"id"`
	Category   LogCategory `json:"category"`
	Emoji      string      `json:"emoji"`
	Text       string      `json:"text"`
	TurnNumber int         `json:"turnNumber"`
	Timestamp  time.Time   `json:"timestamp"`
}

// GameState is a complete battle snapshot.
type GameState struct {
	TurnNumber int        `json:"turnNumber"`
	Player     Player     `json:"player"`
	Enemy      Enemy      `json:"enemy"`
	Weapons    []Weapon   `json:"weapons"`
	Missiles   []Missile  `json:"missiles"`
	Logs       []LogEntry `json:"logs"`
	GameOver   bool       `json:"gameOver"`
	Winner     Side       `json:"winner,omitempty"`
}

// Clone returns a deep copy that shares no memory with s.
func (s *GameState) Clone() GameState {
	out := *s
	out.Enemy.Weapons = cloneSlice(s.Enemy.Weapons)
	out.Weapons = cloneSlice(s.Weapons)
	out.Missiles = cloneSlice(s.Missiles)
	out.Logs = cloneSlice(s.Logs)
	return out
}

// Weapon returns the player weapon with the given id.
func (s *GameState) Weapon(id string) (*Weapon, bool) {
	for i := range s.Weapons {
		if s.Weapons[i].ID == id {
			return &s.Weapons[i], true
		}
	}
	return nil, false
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
