// Package combat holds the damage routing and hit math shared by the player
// command resolver and the enemy AI. Functions here mutate only the entity
// they are handed.
package combat

import (
	"math"
	"math/rand"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/pkg/core"
)

// Roller is the source of randomness for every roll in a turn.
// *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
	Intn(n int) int
}

// NewRoller returns a seeded math/rand source.
func NewRoller(seed int64) Roller {
	return rand.New(rand.NewSource(seed))
}

// ApplyDamage routes incoming damage through shields, the struck armor belt
// and the struck hull pool, then rolls for subsystem damage.
func ApplyDamage(p *core.Player, incoming float64, rng Roller, cfg balance.Config) core.DamageResult {
	side := core.Port
	if rng.Float64() >= 0.5 {
		side = core.Starboard
	}
	res := core.DamageResult{DamageDealt: incoming, Side: side}
	if incoming <= 0 {
		return res
	}
	remaining := incoming

	if p.Shields > 0 {
		absorbed := math.Min(p.Shields, remaining)
		p.Shields = math.Max(0, p.Shields-absorbed)
		res.ShieldsDamage = absorbed
		remaining -= absorbed
	}

	if remaining > 0 {
		belt := p.Armor.Side(side)
		absorbed := remaining * belt.Absorb * (belt.Integrity / 100)
		absorbed = math.Max(0, math.Min(absorbed, remaining))
		belt.Integrity = math.Max(0, belt.Integrity-absorbed*cfg.ArmorDegradationRate)
		res.ArmorDamage = absorbed
		remaining -= absorbed
	}

	if remaining > 0 {
		current := p.Hull.Get(side)
		taken := math.Min(current, remaining)
		p.Hull.Set(side, math.Max(0, current-taken))
		res.HullDamage = taken
	}

	if res.HullDamage > 0 && rng.Float64() < cfg.SubsystemDamageChance {
		var live []core.Subsystem
		for _, name := range core.AllSubsystems {
			if *p.Systems.Ptr(name) > 0 {
				live = append(live, name)
			}
		}
		if len(live) > 0 {
			name := live[rng.Intn(len(live))]
			v := p.Systems.Ptr(name)
			before := *v
			*v = math.Max(0, *v-cfg.SubsystemDamage)
			res.SubsystemDamaged = name
			res.SubsystemDamage = before - *v
		}
	}
	return res
}

// DamageEnemy subtracts damage from the enemy hull, clamped at 0, and
// returns the hull left.
func DamageEnemy(e *core.Enemy, damage float64) float64 {
	e.Hull = math.Max(0, e.Hull-damage)
	return e.Hull
}

// Alerts returns the threshold alerts raised by a damage result.
func Alerts(p *core.Player, res core.DamageResult, cfg balance.Config) []core.Alert {
	var out []core.Alert
	if p.Shields/100 < cfg.AlertShields {
		out = append(out, core.Alert{Level: core.AlertWarning, Kind: core.AlertShields, Shields: p.Shields})
	}
	if p.Hull.Total()/200 < cfg.AlertHull {
		out = append(out, core.Alert{
			Level:    core.AlertCritical,
			Kind:     core.AlertHull,
			HullPort: p.Hull.Port,
			HullStar: p.Hull.Starboard,
		})
	}
	if res.SubsystemDamaged != "" {
		out = append(out, core.Alert{Level: core.AlertWarning, Kind: core.AlertSubsystem, Subsystem: res.SubsystemDamaged})
	}
	return out
}
