// Package websocket streams battles to a remote recorder. It implements
// storage.Backend but neither storage.Uploadable nor storage.Loader.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/broadside-sim/broadside/internal/config"
	"github.com/broadside-sim/broadside/pkg/core"
	"github.com/broadside-sim/broadside/pkg/streaming"
)

// Backend streams battle data over WebSocket.
type Backend struct {
	conn       *connection
	cfg        config.WebSocketConfig
	ackTimeout time.Duration
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:       newConnection(logger.With("component", "storage.websocket")),
		cfg:        cfg,
		ackTimeout: ackTimeout,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartBattle sends start_battle and waits for the server ack. The message
// is cached and replayed if the connection has to be re-established.
func (b *Backend) StartBattle(battle *core.Battle) error {
	data, err := marshalEnvelope(streaming.TypeStartBattle, streaming.StartBattlePayload{Battle: battle})
	if err != nil {
		return err
	}
	b.conn.setCachedStart(data)
	return b.conn.sendAndWait(data, streaming.TypeStartBattle, b.ackTimeout)
}

// RecordTurn sends a turn without waiting.
func (b *Backend) RecordTurn(t *core.TurnRecord) error {
	data, err := marshalEnvelope(streaming.TypeTurn, streaming.TurnPayload{Turn: t})
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// EndBattle sends end_battle and waits for the server ack.
func (b *Backend) EndBattle(o *core.BattleOutcome) error {
	data, err := marshalEnvelope(streaming.TypeEndBattle, streaming.EndBattlePayload{Outcome: o})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndBattle, b.ackTimeout)

	// Clear cached state regardless of error.
	b.conn.setCachedStart(nil)
	return err
}
