// internal/balance/scenario.go
package balance

import (
	"errors"
	"fmt"
	"os"

	"github.com/broadside-sim/broadside/pkg/core"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoWeapons       = errors.New("scenario has no player weapons")
	ErrDuplicateWeapon = errors.New("duplicate weapon id")
	ErrInvalidScenario = errors.New("invalid scenario")
)

// Scenario is the starting loadout of a battle.
type Scenario struct {
	Name    string        `yaml:"name"`
	Player  core.Player   `yaml:"player"`
	Weapons []core.Weapon `yaml:"weapons"`
	Enemy   core.Enemy    `yaml:"enemy"`
}

// DefaultScenario returns the stock player vs. pirate carrier loadout.
func DefaultScenario() Scenario {
	return Scenario{
		Name: "default",
		Player: core.Player{
			Speed: 5,
			Hull:  core.Hull{Port: 100, Starboard: 100},
			Armor: core.Armor{
				Port:      core.ArmorSide{Integrity: 100, Absorb: 0.4},
				Starboard: core.ArmorSide{Integrity: 100, Absorb: 0.4},
			},
			Shields: 100,
			Systems: core.Systems{Weapons: 100, Engines: 100, Sensors: 100, LifeSupport: 100, PointDefense: 100},
			Crew: core.Crew{
				TacticalOfficer: core.CrewMember{Skill: 85, Active: true},
				ChiefEngineer:   core.CrewMember{Skill: 80, Active: true},
				DamageControl:   core.CrewMember{Skill: 75, Active: false},
			},
			PDShotsRemaining: 2,
		},
		Weapons: []core.Weapon{
			{ID: "laser-1", Name: "Laser Battery", Label: "LASER", Type: core.WeaponLaser, Damage: 25, Range: 12, CooldownMax: 2, VolleySize: 3},
			{ID: "railgun-1", Name: "Railgun", Label: "RAILGUN", Type: core.WeaponRailgun, Damage: 45, Range: 18, CooldownMax: 4},
			{ID: "missile-1", Name: "Missile Launcher", Label: "MISSILES", Type: core.WeaponMissile, Damage: 35, Range: 999, CooldownMax: 3, VolleySize: 2},
		},
		Enemy: core.Enemy{
			Name:              "Pirate CV",
			Hull:              100,
			Distance:          30,
			Speed:             4,
			MissileRange:      15,
			DirectRange:       12,
			MissileVolleySize: 2,
			Weapons: []core.Weapon{
				{ID: "enemy-laser", Name: "Laser", Type: core.WeaponLaser, Damage: 20, Range: 12, CooldownMax: 3},
				{ID: "enemy-missile", Name: "Missile Rack", Type: core.WeaponMissile, Damage: 30, Range: 15, CooldownMax: 4, VolleySize: 2},
			},
		},
	}
}

// LoadScenario reads a YAML scenario file. Fields missing from the file keep
// the values of DefaultScenario.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario on top of DefaultScenario and validates it.
func ParseScenario(data []byte) (Scenario, error) {
	s := DefaultScenario()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks the loadout for values that would break turn invariants.
func (s *Scenario) Validate() error {
	if len(s.Weapons) == 0 {
		return ErrNoWeapons
	}
	seen := make(map[string]bool, len(s.Weapons)+len(s.Enemy.Weapons))
	for _, w := range append(append([]core.Weapon{}, s.Weapons...), s.Enemy.Weapons...) {
		if w.ID == "" {
			return fmt.Errorf("%w: weapon without id", ErrInvalidScenario)
		}
		if seen[w.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateWeapon, w.ID)
		}
		seen[w.ID] = true
		if w.Cooldown < 0 || w.CooldownMax < 0 {
			return fmt.Errorf("%w: weapon %s has negative cooldown", ErrInvalidScenario, w.ID)
		}
	}
	if s.Enemy.Distance < 0 {
		return fmt.Errorf("%w: negative enemy distance", ErrInvalidScenario)
	}
	if s.Enemy.Hull <= 0 {
		return fmt.Errorf("%w: enemy hull must be positive", ErrInvalidScenario)
	}
	if s.Player.Hull.Total() <= 0 {
		return fmt.Errorf("%w: player hull must be positive", ErrInvalidScenario)
	}
	return nil
}

// NewGameState builds the turn-1 state for a scenario. Distances are clamped
// to cfg.MaxDistance and the PD allotment comes from cfg.
func NewGameState(s Scenario, cfg Config) core.GameState {
	st := core.GameState{
		TurnNumber: 1,
		Player:     s.Player,
		Enemy:      s.Enemy,
		Weapons:    append([]core.Weapon(nil), s.Weapons...),
		Missiles:   []core.Missile{},
		Logs:       []core.LogEntry{},
	}
	st.Enemy.Weapons = append([]core.Weapon(nil), s.Enemy.Weapons...)
	if st.Enemy.Distance > cfg.MaxDistance {
		st.Enemy.Distance = cfg.MaxDistance
	}
	st.Player.PDShotsRemaining = cfg.PDShotsPerTurn
	st.Player.EvadeActive = false
	return st
}
