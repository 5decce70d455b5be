// Package streaming defines the wire protocol used to stream battles to a
// remote recorder over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/broadside-sim/broadside/pkg/core"
)

// Message type constants of the streaming protocol.
const (
	TypeStartBattle = "start_battle"
	TypeTurn        = "turn"
	TypeEndBattle   = "end_battle"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartBattlePayload opens a battle on the server.
type StartBattlePayload struct {
	Battle *core.Battle `json:"battle"`
}

// TurnPayload carries one resolved turn.
type TurnPayload struct {
	Turn *core.TurnRecord `json:"turn"`
}

// EndBattlePayload closes the battle opened by the last start_battle.
type EndBattlePayload struct {
	Outcome *core.BattleOutcome `json:"outcome"`
}
