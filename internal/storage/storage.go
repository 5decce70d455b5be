// internal/storage/storage.go
package storage

import "github.com/broadside-sim/broadside/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Battle management. StartBattle is called once per battle before any
	// RecordTurn; EndBattle closes it.
	StartBattle(b *core.Battle) error
	RecordTurn(t *core.TurnRecord) error
	EndBattle(o *core.BattleOutcome) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a battle archive server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Loader is an optional interface for backends that can read a battle back.
// Turns are returned in turn order.
type Loader interface {
	LoadBattle(id string) (*core.Battle, []core.TurnRecord, error)
}
