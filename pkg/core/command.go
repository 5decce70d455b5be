// pkg/core/command.go
package core

// CommandType is the wire name of a player command.
type CommandType string

const (
	CommandFireLaser      CommandType = "fire-laser"
	CommandFireRailgun    CommandType = "fire-railgun"
	CommandLaunchMissiles CommandType = "launch-missiles"
	CommandEvade          CommandType = "evade"
	CommandPass           CommandType = "pass"
)

// Command is one player instruction for a turn as received from the outside.
// WeaponID is required for the fire-type commands.
type Command struct {
	Type     CommandType `json:"type"`
	WeaponID string      `json:"weaponId,omitempty"`
}

// IsFire reports whether the command type fires a weapon.
func (c CommandType) IsFire() bool {
	switch c {
	case CommandFireLaser, CommandFireRailgun, CommandLaunchMissiles:
		return true
	}
	return false
}
