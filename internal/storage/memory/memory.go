// internal/storage/memory/memory.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/broadside-sim/broadside/internal/config"
	v1 "github.com/broadside-sim/broadside/internal/storage/memory/export/v1"
	"github.com/broadside-sim/broadside/pkg/core"
)

// ErrNoBattle is returned when recording without a started battle.
var ErrNoBattle = errors.New("no battle started")

// Backend stores battle data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	battle  *core.Battle
	turns   []core.TurnRecord
	outcome *core.BattleOutcome

	lastExportPath string
	lastExportMeta core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartBattle begins recording a new battle, discarding any previous one.
func (b *Backend) StartBattle(battle *core.Battle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *battle
	cp.Initial = battle.Initial.Clone()
	b.battle = &cp
	b.turns = nil
	b.outcome = nil
	return nil
}

// RecordTurn appends a turn to the current battle.
func (b *Backend) RecordTurn(t *core.TurnRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.battle == nil {
		return ErrNoBattle
	}
	rec := *t
	rec.State = t.State.Clone()
	rec.Events = append([]core.Event(nil), t.Events...)
	b.turns = append(b.turns, rec)
	return nil
}

// EndBattle finalizes and exports the battle data
func (b *Backend) EndBattle(o *core.BattleOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.battle == nil {
		return ErrNoBattle
	}
	cp := *o
	b.outcome = &cp
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// LoadBattle returns the battle currently held in memory.
func (b *Backend) LoadBattle(id string) (*core.Battle, []core.TurnRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.battle == nil || b.battle.ID != id {
		return nil, nil, fmt.Errorf("battle %s: %w", id, os.ErrNotExist)
	}
	battle := *b.battle
	turns := make([]core.TurnRecord, len(b.turns))
	copy(turns, b.turns)
	return &battle, turns, nil
}

// TurnCount reports recorded turns of the current battle.
func (b *Backend) TurnCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns the upload metadata of the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}

func (b *Backend) data() *v1.BattleData {
	return &v1.BattleData{Battle: b.battle, Turns: b.turns, Outcome: b.outcome}
}

// exportJSON writes the battle data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	data := b.data()
	export := v1.Build(data)

	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.battle.Scenario)
	if name == "" {
		name = "battle"
	}
	timestamp := b.battle.StartedAt.UTC().Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = v1.Metadata(data)
	return nil
}

func writeExport(path string, export v1.Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(export)
	}

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gz.Close()
}
