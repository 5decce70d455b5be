// Package command validates and executes the player's single action per turn.
package command

import (
	"errors"
	"fmt"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/pkg/core"
)

var (
	ErrUnknownCommand  = errors.New("unknown command type")
	ErrMissingWeaponID = errors.New("weapon id required for fire commands")
	ErrWeaponNotFound  = errors.New("weapon not found")
	ErrCoolingDown     = errors.New("cooling down")
	ErrOutOfRange      = errors.New("out of range")
)

// Action is the closed set of player actions.
type Action interface {
	isAction()
}

// FireWeapon fires one player weapon. Kind is the command type it was parsed from.
type FireWeapon struct {
	Kind     core.CommandType
	WeaponID string
}

// Evade blocks the enemy phase of the current turn.
type Evade struct{}

// Pass does nothing.
type Pass struct{}

func (FireWeapon) isAction() {}
func (Evade) isAction()      {}
func (Pass) isAction()       {}

// Parse turns a wire command into an Action.
func Parse(cmd core.Command) (Action, error) {
	switch cmd.Type {
	case core.CommandFireLaser, core.CommandFireRailgun, core.CommandLaunchMissiles:
		if cmd.WeaponID == "" {
			return nil, fmt.Errorf("%s: %w", cmd.Type, ErrMissingWeaponID)
		}
		return FireWeapon{Kind: cmd.Type, WeaponID: cmd.WeaponID}, nil
	case core.CommandEvade:
		return Evade{}, nil
	case core.CommandPass:
		return Pass{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}

// Result is the outcome of resolving an action. Err is set when Success is
// false; Events carry Type and Data only and are stamped by the caller.
type Result struct {
	Success bool
	Message string
	Err     error
	Events  []core.Event
}

// Resolver executes actions against a state.
type Resolver struct {
	cfg balance.Config
}

// NewResolver returns a resolver for the given tuning.
func NewResolver(cfg balance.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve executes a against st. Validation failures leave st untouched.
func (r *Resolver) Resolve(a Action, st *core.GameState, rng combat.Roller) Result {
	switch a := a.(type) {
	case FireWeapon:
		return r.fire(a, st, rng)
	case Evade:
		st.Player.EvadeActive = true
		return Result{
			Success: true,
			Message: "Evasive maneuvers activated",
			Events:  []core.Event{{Type: core.EventEvadeActivated, Data: core.EvadeActivated{Duration: 1}}},
		}
	case Pass:
		return Result{
			Success: true,
			Message: "Turn passed",
			Events:  []core.Event{{Type: core.EventTurnPassed}},
		}
	}
	err := fmt.Errorf("%w: %T", ErrUnknownCommand, a)
	return Result{Message: err.Error(), Err: err}
}

func (r *Resolver) fire(a FireWeapon, st *core.GameState, rng combat.Roller) Result {
	w, ok := st.Weapon(a.WeaponID)
	if !ok {
		return failure(fmt.Errorf("%w: %s", ErrWeaponNotFound, a.WeaponID))
	}
	name := w.Name
	if name == "" {
		name = w.ID
	}
	if !w.Ready() {
		return failure(fmt.Errorf("%s is %w (%d turns remaining)", name, ErrCoolingDown, w.Cooldown))
	}
	if st.Enemy.Distance > w.Range {
		return failure(fmt.Errorf("%s %w (need ≤ %d km)", name, ErrOutOfRange, w.Range))
	}

	var ev core.Event
	if w.Type == core.WeaponMissile {
		ev = core.Event{Type: core.EventMissileLaunched, Data: core.MissileLaunched{
			WeaponID:   w.ID,
			VolleySize: w.Volley(),
			Damage:     w.Damage,
			Distance:   st.Enemy.Distance,
		}}
	} else {
		chance := combat.HitProbability(
			r.cfg.PlayerAccuracy,
			st.Enemy.Distance,
			w.Range,
			st.Enemy.Speed,
			st.Player.EvadeActive,
			st.Player.Crew.TacticalOfficer.Skill,
		)
		hits, total := combat.RollVolley(rng, w.Volley(), chance, w.Damage)
		if hits > 0 {
			hull := combat.DamageEnemy(&st.Enemy, total)
			ev = core.Event{Type: core.EventWeaponFired, Data: core.WeaponFired{
				WeaponID:    w.ID,
				Hits:        hits,
				TotalDamage: total,
				TargetHull:  hull,
			}}
		} else {
			ev = core.Event{Type: core.EventWeaponMissed, Data: core.WeaponMissed{WeaponID: w.ID, VolleySize: w.Volley()}}
		}
	}

	w.Cooldown = w.CooldownMax + combat.WeaponsCooldownPenalty(st.Player.Systems.Weapons)
	return Result{
		Success: true,
		Message: name + " fired",
		Events:  []core.Event{ev},
	}
}

func failure(err error) Result {
	return Result{Message: err.Error(), Err: err}
}
