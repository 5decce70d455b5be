// Package ai implements the enemy's fixed heuristic: missiles first when in
// missile range, then direct fire when in direct range, otherwise wait.
package ai

import (
	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/pkg/core"
)

// Action is one enemy decision for the turn. The engine carries out its
// effects on the player and the missile collection.
type Action interface {
	isAction()
}

// Blocked means the player's evasion cancelled every attack this phase.
type Blocked struct{}

// LaunchMissiles asks the engine to create Count missiles aimed at the player.
type LaunchMissiles struct {
	WeaponID string
	Count    int
	Damage   float64
	Distance int
}

// DirectFire is a resolved volley. TotalDamage is 0 when every roll missed.
type DirectFire struct {
	WeaponID    string
	VolleySize  int
	Hits        int
	TotalDamage float64
}

// Wait means no weapon was both ready and in range.
type Wait struct {
	Reason string
}

func (Blocked) isAction()        {}
func (LaunchMissiles) isAction() {}
func (DirectFire) isAction()     {}
func (Wait) isAction()           {}

// ReasonNoWeapons is the Wait reason when nothing could fire.
const ReasonNoWeapons = "no_weapons_available"

// Policy decides enemy actions.
type Policy struct {
	cfg balance.Config
}

// NewPolicy returns the enemy policy for the given tuning.
func NewPolicy(cfg balance.Config) *Policy {
	return &Policy{cfg: cfg}
}

// Decide picks this turn's enemy actions and puts every weapon that fires on
// its full cooldown. Nothing on the enemy changes when the player is evading.
func (p *Policy) Decide(e *core.Enemy, player *core.Player, rng combat.Roller) []Action {
	if player.EvadeActive {
		return []Action{Blocked{}}
	}

	var actions []Action

	if w := readyWeapon(e, true); w != nil && e.Distance <= e.MissileRange {
		actions = append(actions, LaunchMissiles{
			WeaponID: w.ID,
			Count:    e.MissileVolleySize,
			Damage:   w.Damage,
			Distance: e.Distance,
		})
		w.Cooldown = w.CooldownMax
	}

	if w := readyWeapon(e, false); w != nil && e.Distance <= e.DirectRange {
		chance := combat.HitProbability(p.cfg.EnemyAccuracy, e.Distance, w.Range, player.Speed, false, p.cfg.EnemyCrewSkill)
		hits, total := combat.RollVolley(rng, w.Volley(), chance, w.Damage)
		actions = append(actions, DirectFire{
			WeaponID:    w.ID,
			VolleySize:  w.Volley(),
			Hits:        hits,
			TotalDamage: total,
		})
		w.Cooldown = w.CooldownMax
	}

	if len(actions) == 0 {
		actions = append(actions, Wait{Reason: ReasonNoWeapons})
	}
	return actions
}

// TickCooldowns decrements every enemy weapon still cooling down.
func TickCooldowns(e *core.Enemy) {
	for i := range e.Weapons {
		if e.Weapons[i].Cooldown > 0 {
			e.Weapons[i].Cooldown--
		}
	}
}

func readyWeapon(e *core.Enemy, missile bool) *core.Weapon {
	for i := range e.Weapons {
		w := &e.Weapons[i]
		if (w.Type == core.WeaponMissile) == missile && w.Ready() {
			return w
		}
	}
	return nil
}
