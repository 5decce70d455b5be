// Package missile owns every missile in flight for the lifetime of one engine.
package missile

import (
	"fmt"
	"math"
	"sort"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/pkg/core"
)

// Volley describes a launch request.
type Volley struct {
	Turn     int
	Target   core.Side
	Count    int
	Damage   float64
	Distance int
	Speed    int
}

// Advance is the outcome of moving every missile one step.
type Advance struct {
	Moved     []core.Missile
	Impacting []core.Missile
	Lost      []core.Missile
}

// Manager is the authoritative missile collection. It is not safe for
// concurrent use; the engine serializes turns.
type Manager struct {
	cfg      balance.Config
	missiles []core.Missile
	nextSeq  int
}

// NewManager returns an empty manager with the sequence counter at 1.
func NewManager(cfg balance.Config) *Manager {
	return &Manager{cfg: cfg, nextSeq: 1}
}

// Launch creates Count missiles with ids M{turn}-{seq}. The starting distance
// is clamped into (0, MaxDistance].
func (m *Manager) Launch(v Volley) []core.Missile {
	dist := v.Distance
	if dist > m.cfg.MaxDistance {
		dist = m.cfg.MaxDistance
	}
	if dist < 1 {
		dist = 1
	}
	speed := v.Speed
	if speed <= 0 {
		speed = m.cfg.PlayerMissileSpeed
	}

	out := make([]core.Missile, 0, v.Count)
	for i := 0; i < v.Count; i++ {
		ms := core.Missile{
			ID:              fmt.Sprintf("M%d-%d", v.Turn, m.nextSeq),
			Target:          v.Target,
			Distance:        dist,
			Damage:          v.Damage,
			Speed:           speed,
			GuidanceQuality: m.cfg.MissileGuidance,
			EvasionRating:   m.cfg.MissileEvasion,
		}
		m.nextSeq++
		m.missiles = append(m.missiles, ms)
		out = append(out, ms)
	}
	return out
}

// Advance moves every missile by its speed. Missiles at or below 0 leave the
// collection as impacting, missiles beyond MaxDistance leave it as lost.
func (m *Manager) Advance() Advance {
	var res Advance
	kept := m.missiles[:0]
	for _, ms := range m.missiles {
		ms.Distance -= ms.Speed
		switch {
		case ms.Distance <= 0:
			res.Impacting = append(res.Impacting, ms)
		case ms.Distance > m.cfg.MaxDistance:
			res.Lost = append(res.Lost, ms)
		default:
			kept = append(kept, ms)
			res.Moved = append(res.Moved, ms)
		}
	}
	m.missiles = kept
	return res
}

// PointDefense runs outer PD then CIWS against missiles targeting the player,
// nearest first. Both tiers draw from p.PDShotsRemaining.
func (m *Manager) PointDefense(p *core.Player, rng combat.Roller) []core.InterceptAttempt {
	var attempts []core.InterceptAttempt
	tiers := []struct {
		kind core.Interceptor
		rng  int
		base float64
	}{
		{core.InterceptorPD, m.cfg.PDRange, p.Systems.PointDefense / 100},
		{core.InterceptorCIWS, m.cfg.CIWSRange, m.cfg.CIWSBaseChance},
	}
	for _, tier := range tiers {
		for _, id := range m.inboundByDistance() {
			if p.PDShotsRemaining <= 0 {
				return attempts
			}
			ms, ok := m.get(id)
			if !ok || ms.Distance > tier.rng {
				continue
			}
			chance := InterceptChance(tier.base, ms, p.Systems.PointDefense, tier.kind)
			success := rng.Float64() < chance
			p.PDShotsRemaining--
			if success {
				m.remove(id)
			}
			attempts = append(attempts, core.InterceptAttempt{
				MissileID:   id,
				Interceptor: tier.kind,
				Success:     success,
				Chance:      chance,
			})
		}
	}
	return attempts
}

// InterceptChance is base × (1 − evasion) × (pd/100) × speed factor, where
// the speed factor is 1 for CIWS and 1 − speed/100 for outer PD.
func InterceptChance(base float64, ms core.Missile, pointDefense float64, kind core.Interceptor) float64 {
	speedFactor := 1.0
	if kind != core.InterceptorCIWS {
		speedFactor = math.Max(0, 1-float64(ms.Speed)/100)
	}
	c := base * (1 - ms.EvasionRating) * (pointDefense / 100) * speedFactor
	return math.Max(0, math.Min(1, c))
}

// ETA returns the advisory number of turns until impact.
func ETA(ms core.Missile) int {
	if ms.Speed <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ms.Distance) / float64(ms.Speed)))
}

// All returns a copy of the missiles in flight, in launch order.
func (m *Manager) All() []core.Missile {
	out := make([]core.Missile, len(m.missiles))
	copy(out, m.missiles)
	return out
}

// Len reports the number of missiles in flight.
func (m *Manager) Len() int {
	return len(m.missiles)
}

// Restore replaces the collection, used when resuming a stored battle. The
// sequence counter moves past nextSeq and past any restored id.
func (m *Manager) Restore(missiles []core.Missile, nextSeq int) {
	m.missiles = append([]core.Missile(nil), missiles...)
	for _, ms := range missiles {
		var turn, seq int
		if _, err := fmt.Sscanf(ms.ID, "M%d-%d", &turn, &seq); err == nil && seq >= nextSeq {
			nextSeq = seq + 1
		}
	}
	if nextSeq > m.nextSeq {
		m.nextSeq = nextSeq
	}
}

// NextSequence returns the sequence the next missile will get.
func (m *Manager) NextSequence() int {
	return m.nextSeq
}

// Reset clears every missile and restarts ids at 1.
func (m *Manager) Reset() {
	m.missiles = nil
	m.nextSeq = 1
}

func (m *Manager) inboundByDistance() []string {
	var inbound []core.Missile
	for _, ms := range m.missiles {
		if ms.Target == core.SidePlayer {
			inbound = append(inbound, ms)
		}
	}
	sort.SliceStable(inbound, func(i, j int) bool {
		return inbound[i].Distance < inbound[j].Distance
	})
	ids := make([]string, len(inbound))
	for i, ms := range inbound {
		ids[i] = ms.ID
	}
	return ids
}

func (m *Manager) get(id string) (core.Missile, bool) {
	for _, ms := range m.missiles {
		if ms.ID == id {
			return ms, true
		}
	}
	return core.Missile{}, false
}

func (m *Manager) remove(id string) {
	for i, ms := range m.missiles {
		if ms.ID == id {
			m.missiles = append(m.missiles[:i], m.missiles[i+1:]...)
			return
		}
	}
}
