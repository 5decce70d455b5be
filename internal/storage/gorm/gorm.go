// Package gormstorage implements storage.Backend on top of any GORM dialect.
// Turns and events are queued and written in batches by a background writer;
// battle rows are written synchronously so their IDs are known up front.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadside-sim/broadside/internal/database"
	"github.com/broadside-sim/broadside/internal/model"
	"github.com/broadside-sim/broadside/internal/model/convert"
	"github.com/broadside-sim/broadside/internal/queue"
	"github.com/broadside-sim/broadside/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// ErrNoBattle is returned when recording without a started battle.
var ErrNoBattle = errors.New("no battle started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Turns  *queue.Queue[model.TurnRecord]
	Events *queue.Queue[model.EventRecord]
}

func newQueues() *queues {
	return &queues{
		Turns:  queue.New[model.TurnRecord](),
		Events: queue.New[model.EventRecord](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	log      *slog.Logger
	queues   *queues
	battleID atomic.Uint64
	uuid     atomic.Value // string
	stopChan chan struct{}
	done     chan struct{}
	writeMu  sync.Mutex

	lastWrite atomic.Int64 // nanoseconds
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Backend{
		deps:   deps,
		log:    log.With("component", "storage.gorm"),
		queues: newQueues(),
	}
	b.uuid.Store("")
	return b
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend requires a database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.runWriter()
	return nil
}

// Close stops the DB writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartBattle inserts the battle row and makes it the target of later turns.
func (b *Backend) StartBattle(battle *core.Battle) error {
	row := convert.CoreToBattle(*battle)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert battle %s: %w", battle.ID, err)
	}
	b.battleID.Store(uint64(row.ID))
	b.uuid.Store(battle.ID)
	b.log.Debug("battle started", "battle", battle.ID, "rowId", row.ID)
	return nil
}

// RecordTurn converts and queues a turn and its events.
func (b *Backend) RecordTurn(t *core.TurnRecord) error {
	battleID := uint(b.battleID.Load())
	if battleID == 0 {
		return ErrNoBattle
	}

	turn, err := convert.CoreToTurnRecord(*t)
	if err != nil {
		return err
	}
	turn.BattleID = battleID

	events := convert.CoreToEventRecords(*t)
	for i := range events {
		events[i].BattleID = battleID
	}

	b.queues.Turns.Push(turn)
	b.queues.Events.Push(events...)
	return nil
}

// EndBattle flushes pending turns and stamps the outcome on the battle row.
func (b *Backend) EndBattle(o *core.BattleOutcome) error {
	battleID := uint(b.battleID.Load())
	if battleID == 0 {
		return ErrNoBattle
	}
	if err := b.Flush(); err != nil {
		return err
	}

	err := b.deps.DB.Model(&model.Battle{}).Where("id = ?", battleID).Updates(map[string]any{
		"ended_at":     sql.NullTime{Time: o.EndedAt, Valid: true},
		"winner":       string(o.Winner),
		"end_reason":   string(o.Reason),
		"turns_played": o.Turns,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close battle %s: %w", o.BattleID, err)
	}

	b.battleID.Store(0)
	b.uuid.Store("")
	b.log.Info("battle closed", "battle", o.BattleID, "winner", o.Winner, "reason", o.Reason, "turns", o.Turns)
	return nil
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	turns, errTurns := writeQueue(b.deps.DB, b.queues.Turns, "turns", b.log)
	events, errEvents := writeQueue(b.deps.DB, b.queues.Events, "events", b.log)
	if turns+events == 0 {
		return errors.Join(errTurns, errEvents)
	}

	elapsed := time.Since(start)
	b.lastWrite.Store(int64(elapsed))

	perf := model.WriterPerformance{
		Time:                time.Now(),
		BattleID:            uint(b.battleID.Load()),
		QueuedTurns:         b.queues.Turns.Len(),
		QueuedEvents:        b.queues.Events.Len(),
		LastWriteDurationMs: float32(elapsed.Seconds() * 1000),
	}
	if err := b.deps.DB.Create(&perf).Error; err != nil {
		b.log.Warn("failed to record writer performance", "error", err)
	}
	return errors.Join(errTurns, errEvents)
}

// LastWriteDuration is how long the most recent non-empty flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Pending reports how many turns and events are waiting to be written.
func (b *Backend) Pending() (turns, events int) {
	return b.queues.Turns.Len(), b.queues.Events.Len()
}

// LoadBattle reads a battle and its turns back, flushing first if it is the
// battle currently being recorded.
func (b *Backend) LoadBattle(id string) (*core.Battle, []core.TurnRecord, error) {
	if current, _ := b.uuid.Load().(string); current == id {
		if err := b.Flush(); err != nil {
			return nil, nil, err
		}
	}

	db := b.deps.DB
	var row model.Battle
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		return nil, nil, fmt.Errorf("battle %s: %w", id, err)
	}
	battle, err := convert.BattleToCore(row)
	if err != nil {
		return nil, nil, err
	}

	var turnRows []model.TurnRecord
	if err := db.Where("battle_id = ?", row.ID).Order("turn_number").Find(&turnRows).Error; err != nil {
		return nil, nil, fmt.Errorf("loading turns of %s: %w", id, err)
	}
	var eventRows []model.EventRecord
	if err := db.Where("battle_id = ?", row.ID).Order("turn_number, seq").Find(&eventRows).Error; err != nil {
		return nil, nil, fmt.Errorf("loading events of %s: %w", id, err)
	}

	byTurn := make(map[int][]model.EventRecord)
	for _, ev := range eventRows {
		byTurn[ev.TurnNumber] = append(byTurn[ev.TurnNumber], ev)
	}

	turns := make([]core.TurnRecord, 0, len(turnRows))
	for _, tr := range turnRows {
		t, err := convert.TurnRecordToCore(tr, id, byTurn[tr.TurnNumber])
		if err != nil {
			return nil, nil, err
		}
		turns = append(turns, t)
	}
	return &battle, turns, nil
}

// ListBattles returns the most recently started battles, newest first.
func (b *Backend) ListBattles(limit int) ([]core.Battle, error) {
	var rows []model.Battle
	q := b.deps.DB.Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing battles: %w", err)
	}
	out := make([]core.Battle, 0, len(rows))
	for _, r := range rows {
		battle, err := convert.BattleToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, battle)
	}
	return out, nil
}

// writeQueue writes all items from a queue in one transaction. Failed items
// are put back at the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) (int, error) {
	if q.Empty() {
		return 0, nil
	}

	items := q.GetAndEmpty()
	if len(items) == 0 {
		return 0, nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&items).Error
	})
	if err != nil {
		log.Error("error writing "+name, "count", len(items), "error", err)
		q.Requeue(items...)
		return 0, fmt.Errorf("writing %s: %w", name, err)
	}
	return len(items), nil
}

// runWriter periodically drains the queues into the DB.
func (b *Backend) runWriter() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
