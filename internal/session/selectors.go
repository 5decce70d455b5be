package session

import (
	"fmt"
	"strconv"

	"github.com/broadside-sim/broadside/pkg/core"
)

// CanUseWeapon reports whether the player could fire weapon id right now.
func (s *Session) CanUseWeapon(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return weaponBlock(&s.state, id) == ""
}

// WeaponTooltip describes why a weapon can or cannot fire.
func (s *Session) WeaponTooltip(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg := weaponBlock(&s.state, id); msg != "" {
		return msg
	}
	w, _ := s.state.Weapon(id)
	return fmt.Sprintf("Ready to fire - Range: %dkm, Damage: %s", w.Range, strconv.FormatFloat(w.Damage, 'f', -1, 64))
}

// weaponBlock returns the reason weapon id cannot fire, or "".
func weaponBlock(st *core.GameState, id string) string {
	w, ok := st.Weapon(id)
	switch {
	case !ok:
		return "Weapon not found"
	case !w.Ready():
		return fmt.Sprintf("Cooling down (%d turns)", w.Cooldown)
	case st.Enemy.Distance > w.Range:
		return fmt.Sprintf("Out of range (need ≤ %d km)", w.Range)
	case st.Player.EvadeActive:
		return "Cannot fire while evading"
	}
	return ""
}

// FilteredLogs returns the battle log entries of one category. An empty
// category or "all" returns every entry.
func (s *Session) FilteredLogs(category string) []core.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" || category == "all" {
		return append([]core.LogEntry(nil), s.state.Logs...)
	}
	out := make([]core.LogEntry, 0)
	for _, l := range s.state.Logs {
		if string(l.Category) == category {
			out = append(out, l)
		}
	}
	return out
}
