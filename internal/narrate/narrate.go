// Package narrate renders structured turn events as battle log entries.
package narrate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/broadside-sim/broadside/pkg/core"
)

const (
	emojiTactical = "⚔️"
	emojiMove     = "🚀"
	emojiMissile  = "🛰️"
	emojiEnemy    = "💥"
	emojiShield   = "🛡️"
	emojiAlert    = "🚨"
	emojiRepair   = "🔧"
	emojiWarning  = "⚠️"
	emojiSummary  = "📊"
)

// Narrator assigns sequential "log-N" ids across a battle.
type Narrator struct {
	next int
}

// New returns a narrator whose first entry is log-1.
func New() *Narrator {
	return &Narrator{next: 1}
}

// Reset restarts ids at log-1.
func (n *Narrator) Reset() {
	n.next = 1
}

// Resume continues numbering after the highest "log-N" id in logs.
func (n *Narrator) Resume(logs []core.LogEntry) {
	n.next = 1
	for _, l := range logs {
		id, ok := strings.CutPrefix(l.ID, "log-")
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(id); err == nil && v >= n.next {
			n.next = v + 1
		}
	}
}

// Opening is the first entry of a battle, logged against turn 0.
func (n *Narrator) Opening(distance int, at time.Time) core.LogEntry {
	return n.entry(core.LogSummary, emojiSummary, fmt.Sprintf("Battle stations! Enemy vessel detected at %dkm.", distance), 0, at)
}

// Narrate converts events to log entries in order. Events without a textual
// form are skipped and consume no id.
func (n *Narrator) Narrate(events []core.Event) []core.LogEntry {
	out := make([]core.LogEntry, 0, len(events))
	for _, ev := range events {
		cat, emoji, text, ok := Line(ev)
		if !ok {
			continue
		}
		out = append(out, n.entry(cat, emoji, text, ev.Turn, ev.Timestamp))
	}
	return out
}

func (n *Narrator) entry(cat core.LogCategory, emoji, text string, turn int, at time.Time) core.LogEntry {
	e := core.LogEntry{
		ID:         "log-" + strconv.Itoa(n.next),
		Category:   cat,
		Emoji:      emoji,
		Text:       text,
		TurnNumber: turn,
		Timestamp:  at,
	}
	n.next++
	return e
}

// Line returns the category, emoji and text for one event.
func Line(ev core.Event) (core.LogCategory, string, string, bool) {
	switch d := ev.Data.(type) {
	case core.ShipsMoved:
		return core.LogTactical, emojiMove, fmt.Sprintf("Ships closing - Distance: %dkm → %dkm (−%dkm)", d.OldDistance, d.NewDistance, d.TotalMovement), true
	case core.MissileMoved:
		return core.LogMissile, emojiMissile, fmt.Sprintf("%s closing - distance: %dkm", d.MissileID, d.NewDistance), true
	case core.MissileLost:
		return core.LogMissile, emojiMissile, fmt.Sprintf("%s lost at %dkm", d.MissileID, d.Distance), true
	case core.InterceptAttempt:
		verb := "missed"
		if d.Success {
			verb = "intercepted"
		}
		return core.LogMissile, emojiMissile, fmt.Sprintf("%s %s %s", d.Interceptor, verb, d.MissileID), true
	case core.MissileImpact:
		if d.Target == core.SideEnemy {
			return core.LogMissile, emojiMissile, fmt.Sprintf("%s struck the enemy for %s damage", d.MissileID, num(d.Damage)), true
		}
		return core.LogEnemy, emojiEnemy, fmt.Sprintf("%s impact for %s damage", d.MissileID, num(d.Damage)), true
	case core.Alert:
		return core.LogAlerts, emojiAlert, alertText(d), true
	case core.CommandIssued:
		if d.Success {
			return "", "", "", false
		}
		return core.LogTactical, emojiWarning, "Command failed: " + d.Message, true
	case core.WeaponFired:
		return core.LogTactical, emojiTactical, fmt.Sprintf("%d hits for %s damage", d.Hits, num(d.TotalDamage)), true
	case core.WeaponMissed:
		if ev.Type == core.EventEnemyMissed {
			return core.LogEnemy, emojiEnemy, fmt.Sprintf("Enemy fire missed - 0/%d hits", d.VolleySize), true
		}
		return core.LogTactical, emojiTactical, fmt.Sprintf("%s missed - 0/%d hits", d.WeaponID, d.VolleySize), true
	case core.MissileLaunched:
		if ev.Type == core.EventEnemyMissileLaunched {
			return core.LogEnemy, emojiEnemy, fmt.Sprintf("Enemy launched %d missiles", d.VolleySize), true
		}
		return core.LogMissile, emojiMissile, fmt.Sprintf("Launched %d missiles", d.VolleySize), true
	case core.MissileCreated:
		if ev.Type == core.EventEnemyMissileCreated {
			return core.LogMissile, emojiMissile, fmt.Sprintf("Inbound %s - ETA %d turns", d.Missile.ID, d.ETA), true
		}
		return core.LogMissile, emojiMissile, fmt.Sprintf("%s away - ETA %d turns", d.Missile.ID, d.ETA), true
	case core.EvadeActivated:
		return core.LogTactical, emojiTactical, "Evasive maneuvers activated", true
	case core.EnemyAction:
		if d.Action == core.EnemyAttacksBlocked {
			return core.LogTactical, emojiShield, "Enemy attacks blocked by evasion", true
		}
		return core.LogEnemy, emojiEnemy, "Enemy action: " + string(d.Action), true
	case core.EnemyDirectFire:
		return core.LogEnemy, emojiEnemy, fmt.Sprintf("Enemy scored %d hits for %s damage", d.Hits, num(d.TotalDamage)), true
	case core.PlayerDamaged:
		r := d.Result
		return core.LogEngineering, emojiRepair, fmt.Sprintf("%s side hit: shields -%s, armor -%s, hull -%s",
			r.Side, num(r.ShieldsDamage), num(r.ArmorDamage), num(r.HullDamage)), true
	case core.EnemyDamaged:
		return core.LogTactical, emojiTactical, fmt.Sprintf("Enemy hull hit for %s damage - %s remaining", num(d.Damage), num(d.Hull)), true
	case core.ErrorOccurred:
		return core.LogAlerts, emojiWarning, fmt.Sprintf("Error during %s: %s", d.Context, d.Error), true
	case core.TurnSummary:
		return core.LogSummary, emojiSummary, fmt.Sprintf("Turn %d - Hull: %s/200, Shields: %s%%, Distance: %dkm",
			d.TurnNumber, num(d.PlayerHull), num(d.PlayerShields), d.Distance), true
	}

	if ev.Type == core.EventTurnPassed {
		return core.LogTactical, emojiTactical, "Holding course", true
	}
	return "", "", "", false
}

func alertText(a core.Alert) string {
	switch a.Kind {
	case core.AlertShields:
		return fmt.Sprintf("⚠️ Shields critical: %.0f%%", a.Shields)
	case core.AlertHull:
		return fmt.Sprintf("🚨 Hull breach detected! Port: %s%% Star: %s%%", num(a.HullPort), num(a.HullStar))
	case core.AlertSubsystem:
		return fmt.Sprintf("⚙️ %s system damaged!", a.Subsystem)
	}
	return string(a.Kind)
}

// num prints at most one decimal.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
