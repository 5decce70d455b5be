// internal/engine/phases.go
package engine

import (
	"fmt"

	"github.com/broadside-sim/broadside/internal/ai"
	"github.com/broadside-sim/broadside/internal/combat"
	"github.com/broadside-sim/broadside/internal/command"
	"github.com/broadside-sim/broadside/internal/missile"
	"github.com/broadside-sim/broadside/pkg/core"
)

const (
	contextMovement      = "movement"
	contextMissiles      = "incoming_missiles"
	contextCooldowns     = "cooldown_tick"
	contextPlayerCommand = "player_command_execution"
	contextEnemyAI       = "enemy_ai_execution"
	contextTurnEnd       = "turn_end"
	contextNarration     = "narration"
	sourceEnemyDirect    = "enemy_direct_fire"
)

// turn is the working set of one ExecuteTurn call.
type turn struct {
	e      *Engine
	st     *core.GameState
	events []core.Event

	launched   int
	intercepts int
	faults     int
}

func (t *turn) emit(typ core.EventType, data any) {
	t.events = append(t.events, core.Event{
		Type:      typ,
		Turn:      t.st.TurnNumber,
		Timestamp: t.e.now(),
		Data:      data,
	})
}

// run executes one phase; a panic inside it becomes an ERROR_OCCURRED event
// and the pipeline moves on.
func (t *turn) run(phase string, fn func()) {
	defer t.recover(phase)
	fn()
}

// recover converts a panic in the current phase into an ERROR_OCCURRED event.
func (t *turn) recover(phase string) {
	if r := recover(); r != nil {
		t.fault(phase, r)
	}
}

func (t *turn) fault(phase string, r any) {
	t.faults++
	msg := fmt.Sprint(r)
	if err, ok := r.(error); ok {
		msg = err.Error()
	}
	t.e.logger.Error("recovered fault in turn", "turn", t.st.TurnNumber, "phase", phase, "error", msg)
	t.emit(core.EventErrorOccurred, core.ErrorOccurred{Error: msg, Context: phase})
}

func (t *turn) movement() {
	en := &t.st.Enemy
	if en.Distance <= 0 {
		return
	}
	playerSpeed := int(float64(t.st.Player.Speed) * t.st.Player.Systems.Engines / 100)
	if playerSpeed < 0 {
		playerSpeed = 0
	}
	enemySpeed := en.Speed
	if enemySpeed < 0 {
		enemySpeed = 0
	}
	reduction := min(playerSpeed+enemySpeed, en.Distance)
	old := en.Distance
	en.Distance = old - reduction

	t.emit(core.EventShipsMoved, core.ShipsMoved{
		PlayerSpeed:   playerSpeed,
		EnemySpeed:    enemySpeed,
		TotalMovement: reduction,
		OldDistance:   old,
		NewDistance:   en.Distance,
	})
}

func (t *turn) incomingMissiles() {
	adv := t.e.missiles.Advance()
	for _, ms := range adv.Moved {
		t.emit(core.EventMissileMoved, core.MissileMoved{MissileID: ms.ID, Target: ms.Target, NewDistance: ms.Distance})
	}
	for _, ms := range adv.Lost {
		t.emit(core.EventMissileLost, core.MissileLost{MissileID: ms.ID, Distance: ms.Distance})
	}

	for _, a := range t.e.missiles.PointDefense(&t.st.Player, t.e.rng) {
		if a.Success {
			t.intercepts++
		}
		t.emit(core.EventMissileIntercepted, a)
	}

	for _, ms := range adv.Impacting {
		if ms.Target == core.SideEnemy {
			hull := combat.DamageEnemy(&t.st.Enemy, ms.Damage)
			t.emit(core.EventMissileImpact, core.MissileImpact{MissileID: ms.ID, Target: ms.Target, Damage: ms.Damage, EnemyHull: hull})
			t.emit(core.EventEnemyDamaged, core.EnemyDamaged{Source: ms.ID, Damage: ms.Damage, Hull: hull})
			continue
		}
		res := combat.ApplyDamage(&t.st.Player, ms.Damage, t.e.rng, t.e.cfg)
		t.emit(core.EventMissileImpact, core.MissileImpact{MissileID: ms.ID, Target: core.SidePlayer, Damage: ms.Damage, Result: &res})
		t.emit(core.EventPlayerDamaged, core.PlayerDamaged{Source: ms.ID, Result: res})
		t.alerts(res)
	}
}

func (t *turn) alerts(res core.DamageResult) {
	for _, a := range combat.Alerts(&t.st.Player, res, t.e.cfg) {
		t.emit(core.EventAlertRaised, a)
	}
}

func (t *turn) tickPlayerCooldowns() {
	for i := range t.st.Weapons {
		if t.st.Weapons[i].Cooldown > 0 {
			t.st.Weapons[i].Cooldown--
		}
	}
}

func (t *turn) playerCommand(cmd core.Command) {
	defer t.recover(contextPlayerCommand)

	action, err := command.Parse(cmd)
	if err != nil {
		t.emit(core.EventPlayerCommandIssued, core.CommandIssued{Command: cmd, Message: err.Error()})
		t.emit(core.EventErrorOccurred, core.ErrorOccurred{Error: err.Error(), Context: contextPlayerCommand})
		return
	}

	res := t.e.resolver.Resolve(action, t.st, t.e.rng)
	t.emit(core.EventPlayerCommandIssued, core.CommandIssued{Command: cmd, Success: res.Success, Message: res.Message})

	for _, ev := range res.Events {
		t.emit(ev.Type, ev.Data)
		launch, ok := ev.Data.(core.MissileLaunched)
		if !ok {
			continue
		}
		for _, ms := range t.e.missiles.Launch(missile.Volley{
			Turn:     t.st.TurnNumber,
			Target:   core.SideEnemy,
			Count:    launch.VolleySize,
			Damage:   launch.Damage,
			Distance: t.st.Enemy.Distance,
			Speed:    t.e.cfg.PlayerMissileSpeed,
		}) {
			t.launched++
			t.emit(core.EventMissileCreated, core.MissileCreated{Missile: ms, ETA: missile.ETA(ms)})
		}
	}
}

func (t *turn) enemyPhase() {
	defer func() { t.st.Player.EvadeActive = false }()
	defer t.recover(contextEnemyAI)

	for _, act := range t.e.policy.Decide(&t.st.Enemy, &t.st.Player, t.e.rng) {
		switch a := act.(type) {
		case ai.Blocked:
			t.emit(core.EventEnemyAction, core.EnemyAction{Action: core.EnemyAttacksBlocked})
		case ai.Wait:
			t.emit(core.EventEnemyAction, core.EnemyAction{Action: core.EnemyWait, Reason: a.Reason})
		case ai.LaunchMissiles:
			t.emit(core.EventEnemyMissileLaunched, core.MissileLaunched{
				WeaponID:   a.WeaponID,
				VolleySize: a.Count,
				Damage:     a.Damage,
				Distance:   a.Distance,
			})
			for _, ms := range t.e.missiles.Launch(missile.Volley{
				Turn:     t.st.TurnNumber,
				Target:   core.SidePlayer,
				Count:    a.Count,
				Damage:   a.Damage,
				Distance: a.Distance,
				Speed:    t.e.cfg.EnemyMissileSpeed,
			}) {
				t.launched++
				t.emit(core.EventEnemyMissileCreated, core.MissileCreated{Missile: ms, ETA: missile.ETA(ms)})
			}
		case ai.DirectFire:
			if a.Hits == 0 {
				t.emit(core.EventEnemyMissed, core.WeaponMissed{WeaponID: a.WeaponID, VolleySize: a.VolleySize})
				continue
			}
			t.emit(core.EventEnemyDirectFire, core.EnemyDirectFire{WeaponID: a.WeaponID, Hits: a.Hits, TotalDamage: a.TotalDamage})
			res := combat.ApplyDamage(&t.st.Player, a.TotalDamage, t.e.rng, t.e.cfg)
			t.emit(core.EventPlayerDamaged, core.PlayerDamaged{Source: sourceEnemyDirect, Result: res})
			t.alerts(res)
		}
	}
}

func (t *turn) checkWin() {
	if t.st.Player.Destroyed() {
		t.st.GameOver = true
		t.st.Winner = core.SideEnemy
	}
	if t.st.Enemy.Hull <= 0 {
		t.st.GameOver = true
		t.st.Winner = core.SidePlayer
	}
}

func (t *turn) summary() core.TurnSummary {
	return core.TurnSummary{
		TurnNumber:     t.st.TurnNumber,
		PlayerHull:     t.st.Player.Hull.Total(),
		PlayerShields:  t.st.Player.Shields,
		EnemyHull:      t.st.Enemy.Hull,
		Distance:       t.st.Enemy.Distance,
		ActiveMissiles: len(t.st.Missiles),
		GameOver:       t.st.GameOver,
		Winner:         t.st.Winner,
	}
}

// narrate renders the trail. A narrator panic is reported just before the
// summary so the summary stays last, and the turn adds no log entries.
func (t *turn) narrate() (logs []core.LogEntry) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		last := len(t.events) - 1
		summary := t.events[last]
		t.events = t.events[:last]
		t.fault(contextNarration, r)
		t.events = append(t.events, summary)
		logs = nil
	}()
	return t.e.narrator.Narrate(t.events)
}
