package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/engine"
)

func TestMirrorWritesAllTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.db")
	db, err := Open(path)
	require.NoError(t, err)
	m := NewMirror(db, "test-arena", 16)

	ledger := economy.NewLedger()
	entry := ledger.Append("client-01", "actor-1", 0.05, economy.CategoryResearch, "stl_abc", time.Now())
	ref, ok := m.LogTransaction(entry)
	require.True(t, ok)
	assert.Contains(t, ref, "mtx_")

	_, ok = m.LogDeath(engine.DeathRecord{
		ActorID:  "actor-2",
		Name:     "Atlas-01",
		Category: economy.CategoryResearch,
		Cycle:    4,
		Time:     time.Now(),
		Residual: 0.004,
		Winner:   "actor-1",
		Shares:   map[string]float64{"actor-1": 0.004},
	})
	require.True(t, ok)
	m.UpdateStats(engine.Stats{Cycle: 4, Active: 3, Gini: 0.25, Timestamp: time.Now()})
	require.NoError(t, m.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	txs, err := db.RecentTransactions("test-arena", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ref, txs[0].Ref)
	assert.Equal(t, entry.ID, txs[0].EntryID)
	assert.InDelta(t, 0.05, txs[0].Amount, 1e-12)

	deaths, err := db.Deaths("test-arena")
	require.NoError(t, err)
	require.Len(t, deaths, 1)
	require.NotNil(t, deaths[0].Winner)
	assert.Equal(t, "actor-1", *deaths[0].Winner)

	st, err := db.LatestStats("test-arena")
	require.NoError(t, err)
	assert.Equal(t, 2500, st.GiniBps)
	assert.Equal(t, int64(4), st.Cycle)

	started, err := db.GetMeta("arena_started_ms")
	require.NoError(t, err)
	assert.NotEmpty(t, started)
}

func TestMirrorAfterCloseRejects(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	m := NewMirror(db, "a", 1)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, ok := m.LogTransaction(economy.LedgerEntry{ID: "x"})
	assert.False(t, ok)
	m.UpdateStats(engine.Stats{})
}
