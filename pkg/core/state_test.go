package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone_NoAliasing(t *testing.T) {
	s := GameState{
		TurnNumber: 3,
		Enemy:      Enemy{Name: "Raider", Weapons: []Weapon{{ID: "e1", Cooldown: 1}}},
		Weapons:    []Weapon{{ID: "laser-1", Cooldown: 0}},
		Missiles:   []Missile{{ID: "M1-1", Distance: 10}},
		Logs:       []LogEntry{{ID: "log-1"}},
	}

	c := s.Clone()
	c.Enemy.Weapons[0].Cooldown = 9
	c.Weapons[0].Cooldown = 9
	c.Missiles[0].Distance = 1
	c.Logs[0].ID = "changed"
	c.Player.Hull.Port = 1

	assert.Equal(t, 1, s.Enemy.Weapons[0].Cooldown)
	assert.Equal(t, 0, s.Weapons[0].Cooldown)
	assert.Equal(t, 10, s.Missiles[0].Distance)
	assert.Equal(t, "log-1", s.Logs[0].ID)
	assert.Equal(t, 0.0, s.Player.Hull.Port)
}

func TestClone_NilSlicesStayNil(t *testing.T) {
	s := GameState{}
	c := s.Clone()
	assert.Nil(t, c.Weapons)
	assert.Nil(t, c.Missiles)
	assert.Nil(t, c.Logs)
}

func TestHull_GetSet(t *testing.T) {
	h := Hull{Port: 40, Starboard: 60}
	assert.Equal(t, 40.0, h.Get(Port))
	assert.Equal(t, 60.0, h.Get(Starboard))

	h.Set(Starboard, 5)
	assert.Equal(t, 5.0, h.Starboard)
	assert.Equal(t, 45.0, h.Total())
}

func TestSystems_Ptr(t *testing.T) {
	s := Systems{Weapons: 1, Engines: 2, Sensors: 3, LifeSupport: 4, PointDefense: 5}
	for i, name := range AllSubsystems {
		p := s.Ptr(name)
		require.NotNil(t, p, name)
		assert.Equal(t, float64(i+1), *p)
	}
	assert.Nil(t, s.Ptr("shields"))
}

func TestGameState_Weapon(t *testing.T) {
	s := GameState{Weapons: []Weapon{{ID: "laser-1"}, {ID: "railgun-1"}}}

	w, ok := s.Weapon("railgun-1")
	require.True(t, ok)
	w.Cooldown = 4
	assert.Equal(t, 4, s.Weapons[1].Cooldown, "returned pointer must address the slice element")

	_, ok = s.Weapon("nope")
	assert.False(t, ok)
}

func TestWeapon_Volley(t *testing.T) {
	assert.Equal(t, 1, (&Weapon{}).Volley())
	assert.Equal(t, 3, (&Weapon{VolleySize: 3}).Volley())
}
