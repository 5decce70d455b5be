// internal/combat/hit.go
package combat

import (
	"math"

	"github.com/broadside-sim/broadside/pkg/core"
)

// HitProbability multiplies the range, speed, evasion and crew modifiers.
// crewSkill is a percentage in [0,100].
func HitProbability(baseAccuracy float64, distance, maxRange, targetSpeed int, evading bool, crewSkill float64) float64 {
	rangeMod := 0.3
	if maxRange > 0 {
		rangeMod = clamp(math.Max(0.3, 1-float64(distance)/float64(maxRange)))
	}
	speedMod := clamp(math.Max(0.5, 1-float64(targetSpeed)/100))
	evasionMod := 1.0
	if evading {
		evasionMod = 0.1
	}
	crewMod := clamp(crewSkill / 100)

	return clamp(clamp(baseAccuracy) * rangeMod * speedMod * evasionMod * crewMod)
}

// RollVolley rolls n independent hits at probability p and sums the damage
// of the ones that land.
func RollVolley(rng Roller, n int, p, damage float64) (hits int, total float64) {
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			hits++
			total += damage
		}
	}
	return hits, total
}

type effectBand struct {
	band float64
	step float64
}

var subsystemEffects = map[core.Subsystem]effectBand{
	core.SubsystemWeapons:      {band: 20, step: 1},
	core.SubsystemEngines:      {band: 25, step: 10},
	core.SubsystemSensors:      {band: 20, step: 5},
	core.SubsystemLifeSupport:  {band: 30, step: 2},
	core.SubsystemPointDefense: {band: 15, step: 10},
}

// SubsystemEffect returns the stepped penalty for a subsystem at the given
// integrity: cooldown turns for weapons, percentages for the rest.
// Unknown subsystems return 0.
func SubsystemEffect(system core.Subsystem, integrity float64) float64 {
	e, ok := subsystemEffects[system]
	if !ok {
		return 0
	}
	lost := 100 - math.Max(0, math.Min(100, integrity))
	return math.Floor(lost/e.band) * e.step
}

// WeaponsCooldownPenalty is the extra cooldown applied on fire.
func WeaponsCooldownPenalty(integrity float64) int {
	return int(SubsystemEffect(core.SubsystemWeapons, integrity))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
