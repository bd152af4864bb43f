package persistence

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/engine"
)

// Mirror is the best-effort engine.Mirror backed by SQLite. Records are
// queued and written by a single worker; a full queue drops the record, and
// write errors are logged, never returned.
type Mirror struct {
	db      *DB
	arenaID string
	queue   chan func() error
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ engine.Mirror = (*Mirror)(nil)

// NewMirror starts the writer for db.
func NewMirror(db *DB, arenaID string, queueSize int) *Mirror {
	if queueSize < 1 {
		queueSize = 1
	}
	m := &Mirror{db: db, arenaID: arenaID, queue: make(chan func() error, queueSize)}
	if err := db.SaveMeta("arena_started_ms", strconv.FormatInt(nowMilli(), 10)); err != nil {
		slog.Warn("mirror meta write failed", "error", err)
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for write := range m.queue {
		if err := write(); err != nil {
			slog.Warn("mirror write failed", "error", err)
		}
	}
}

// enqueue hands a write to the worker without blocking.
func (m *Mirror) enqueue(write func() error) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.queue <- write:
		return true
	default:
		slog.Warn("mirror queue full, dropping record")
		return false
	}
}

// LogTransaction queues a ledger entry and returns its mirror reference.
func (m *Mirror) LogTransaction(e economy.LedgerEntry) (string, bool) {
	ref := "mtx_" + uuid.NewString()
	ok := m.enqueue(func() error { return m.db.InsertTransaction(m.arenaID, ref, e) })
	if !ok {
		return "", false
	}
	return ref, true
}

// LogDeath queues a death record and returns its mirror reference.
func (m *Mirror) LogDeath(r engine.DeathRecord) (string, bool) {
	ref := "mdt_" + uuid.NewString()
	ok := m.enqueue(func() error { return m.db.InsertDeath(m.arenaID, ref, r) })
	if !ok {
		return "", false
	}
	return ref, true
}

// UpdateStats queues the cycle summary.
func (m *Mirror) UpdateStats(s engine.Stats) {
	m.enqueue(func() error { return m.db.UpsertStats(m.arenaID, s) })
}

// Close drains the queue, stops the worker, and closes the database.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	return m.db.Close()
}

// DB returns the underlying store for read queries.
func (m *Mirror) DB() *DB {
	return m.db
}
