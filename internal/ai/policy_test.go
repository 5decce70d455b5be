package ai

import (
	"testing"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat/combattest"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(distance int) (core.Enemy, core.Player) {
	s := balance.DefaultScenario()
	s.Enemy.Distance = distance
	return s.Enemy, s.Player
}

func TestDecide_EvadingBlocksEverything(t *testing.T) {
	e, p := setup(5)
	p.EvadeActive = true
	rng := combattest.Always(0)

	actions := NewPolicy(balance.Default()).Decide(&e, &p, rng)

	assert.Equal(t, []Action{Blocked{}}, actions)
	for _, w := range e.Weapons {
		assert.Zero(t, w.Cooldown)
	}
	assert.Zero(t, rng.Calls())
}

func TestDecide_OutOfRangeWaits(t *testing.T) {
	e, p := setup(25)
	actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(0))
	assert.Equal(t, []Action{Wait{Reason: ReasonNoWeapons}}, actions)
}

func TestDecide_MissileOnly(t *testing.T) {
	e, p := setup(14)
	actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(0))

	require.Len(t, actions, 1)
	launch, ok := actions[0].(LaunchMissiles)
	require.True(t, ok)
	assert.Equal(t, "enemy-missile", launch.WeaponID)
	assert.Equal(t, 2, launch.Count)
	assert.Equal(t, 30.0, launch.Damage)
	assert.Equal(t, 14, launch.Distance)
	assert.Equal(t, 4, e.Weapons[1].Cooldown)
	assert.Zero(t, e.Weapons[0].Cooldown)
}

func TestDecide_BothFire(t *testing.T) {
	e, p := setup(6)
	actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(0))

	require.Len(t, actions, 2)
	assert.IsType(t, LaunchMissiles{}, actions[0])
	fire, ok := actions[1].(DirectFire)
	require.True(t, ok)
	assert.Equal(t, "enemy-laser", fire.WeaponID)
	assert.Equal(t, 1, fire.Hits)
	assert.Equal(t, 20.0, fire.TotalDamage)
	assert.Equal(t, 3, e.Weapons[0].Cooldown)
}

func TestDecide_MissedVolleyIsNotWait(t *testing.T) {
	e, p := setup(10)
	e.Weapons[1].Cooldown = 2

	actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(0.999))

	require.Len(t, actions, 1)
	fire, ok := actions[0].(DirectFire)
	require.True(t, ok)
	assert.Zero(t, fire.Hits)
	assert.Zero(t, fire.TotalDamage)
	assert.Equal(t, 3, e.Weapons[0].Cooldown, "cooldown set even on a miss")
}

func TestDecide_CoolingDownWaits(t *testing.T) {
	e, p := setup(5)
	for i := range e.Weapons {
		e.Weapons[i].Cooldown = 1
	}
	actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(0))
	assert.IsType(t, Wait{}, actions[0])
}

func TestTickCooldowns(t *testing.T) {
	e := core.Enemy{Weapons: []core.Weapon{{Cooldown: 2}, {Cooldown: 0}, {Cooldown: 1}}}
	TickCooldowns(&e)
	assert.Equal(t, 1, e.Weapons[0].Cooldown)
	assert.Equal(t, 0, e.Weapons[1].Cooldown)
	assert.Equal(t, 0, e.Weapons[2].Cooldown)
}

func TestDecide_DirectFireUsesCrewPercentage(t *testing.T) {
	// 0.75 accuracy * 0.5 range * 0.95 speed * 80/100 crew
	const chance = 0.75 * 0.5 * 0.95 * 0.8

	tests := []struct {
		name string
		roll float64
		hits int
	}{
		{"just under", chance - 0.001, 1},
		{"just over", chance + 0.001, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, p := setup(6)
			e.Weapons[1].Cooldown = 2

			actions := NewPolicy(balance.Default()).Decide(&e, &p, combattest.Always(tt.roll))

			require.Len(t, actions, 1)
			fire, ok := actions[0].(DirectFire)
			require.True(t, ok)
			assert.Equal(t, tt.hits, fire.Hits)
		})
	}
}
