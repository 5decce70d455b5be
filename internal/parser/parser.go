// Package parser turns raw request arguments into battle commands and
// scenario overrides. It performs no validation against game state.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/broadside-sim/broadside/internal/balance"
	"github.com/broadside-sim/broadside/pkg/core"
)

// ErrInvalidArgs is returned when a request carries the wrong shape of arguments.
var ErrInvalidArgs = errors.New("invalid arguments")

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

func clean(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		a = strings.TrimSpace(FixEscapeQuotes(TrimQuotes(strings.TrimSpace(a))))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// parseIntFromFloat parses a string that may be an integer ("32") or float ("32.00") into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// ParseCommand builds a command from request args. Accepted shapes:
//
//	["fire-laser", "laser-1"]
//	["fire-laser laser-1"]
//	[`{"type":"fire-laser","weaponId":"laser-1"}`]
//
// The command type is lowercased. Unknown types are passed through so the
// turn records them as a failed command.
func ParseCommand(args []string) (core.Command, error) {
	data := clean(args)
	if len(data) == 1 {
		if strings.HasPrefix(data[0], "{") {
			var cmd core.Command
			if err := json.Unmarshal([]byte(data[0]), &cmd); err != nil {
				return core.Command{}, fmt.Errorf("%w: error unmarshalling command: %v", ErrInvalidArgs, err)
			}
			cmd.Type = core.CommandType(strings.ToLower(strings.TrimSpace(string(cmd.Type))))
			if cmd.Type == "" {
				return core.Command{}, fmt.Errorf("%w: command type missing", ErrInvalidArgs)
			}
			return cmd, nil
		}
		data = strings.Fields(data[0])
	}

	switch len(data) {
	case 0:
		return core.Command{}, fmt.Errorf("%w: no command given", ErrInvalidArgs)
	case 1, 2:
	default:
		return core.Command{}, fmt.Errorf("%w: expected command and optional weapon id, got %d args", ErrInvalidArgs, len(data))
	}

	cmd := core.Command{Type: core.CommandType(strings.ToLower(data[0]))}
	if len(data) == 2 {
		cmd.WeaponID = data[1]
	}
	return cmd, nil
}

// ParseOverrides applies key=value overrides to a copy of sc. Keys:
// name, enemy, distance, enemyHull, enemySpeed, speed, shields.
func ParseOverrides(args []string, sc balance.Scenario) (balance.Scenario, error) {
	out := sc
	out.Weapons = append([]core.Weapon(nil), sc.Weapons...)
	out.Enemy.Weapons = append([]core.Weapon(nil), sc.Enemy.Weapons...)

	for _, arg := range clean(args) {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return balance.Scenario{}, fmt.Errorf("%w: %q is not key=value", ErrInvalidArgs, arg)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "name":
			out.Name = value
		case "enemy":
			out.Enemy.Name = value
		case "distance", "enemySpeed", "speed":
			n, err := parseIntFromFloat(value)
			if err != nil || n < 0 {
				return balance.Scenario{}, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidArgs, key, value)
			}
			switch key {
			case "distance":
				out.Enemy.Distance = int(n)
			case "enemySpeed":
				out.Enemy.Speed = int(n)
			case "speed":
				out.Player.Speed = int(n)
			}
		case "enemyHull", "shields":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 || f > 100 {
				return balance.Scenario{}, fmt.Errorf("%w: %s must be within 0-100, got %q", ErrInvalidArgs, key, value)
			}
			if key == "enemyHull" {
				out.Enemy.Hull = f
			} else {
				out.Player.Shields = f
			}
		default:
			return balance.Scenario{}, fmt.Errorf("%w: unknown override %q", ErrInvalidArgs, key)
		}
	}

	if err := out.Validate(); err != nil {
		return balance.Scenario{}, err
	}
	return out, nil
}
