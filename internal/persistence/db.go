// Package persistence provides the SQLite ledger mirror: settled
// transactions, deaths, and per-cycle arena stats.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/engine"
)

// DB wraps a SQLite connection for the mirror tables.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		ref TEXT PRIMARY KEY,
		arena_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		settlement_ref TEXT NOT NULL,
		ts INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deaths (
		ref TEXT PRIMARY KEY,
		arena_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		scams INTEGER NOT NULL,
		residual REAL NOT NULL,
		winner TEXT,
		shares_json TEXT NOT NULL,
		ts INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS arena_stats (
		arena_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		active INTEGER NOT NULL,
		critical INTEGER NOT NULL,
		exhausted INTEGER NOT NULL,
		total_balance REAL NOT NULL,
		gini_bps INTEGER NOT NULL,
		transactions INTEGER NOT NULL,
		scams INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		ts INTEGER NOT NULL,
		PRIMARY KEY (arena_id, cycle)
	);

	CREATE TABLE IF NOT EXISTS arena_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_to ON transactions(to_id);
	CREATE INDEX IF NOT EXISTS idx_deaths_arena ON deaths(arena_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// TransactionRow is a mirrored ledger entry.
type TransactionRow struct {
	Ref           string  `db:"ref" json:"ref"`
	ArenaID       string  `db:"arena_id" json:"arena_id"`
	EntryID       string  `db:"entry_id" json:"entry_id"`
	From          string  `db:"from_id" json:"from"`
	To            string  `db:"to_id" json:"to"`
	Amount        float64 `db:"amount" json:"amount"`
	Category      string  `db:"category" json:"category"`
	SettlementRef string  `db:"settlement_ref" json:"settlement_ref"`
	Timestamp     int64   `db:"ts" json:"ts"`
}

// DeathRow is a mirrored death record.
type DeathRow struct {
	Ref        string  `db:"ref" json:"ref"`
	ArenaID    string  `db:"arena_id" json:"arena_id"`
	ActorID    string  `db:"actor_id" json:"actor_id"`
	Name       string  `db:"name" json:"name"`
	Category   string  `db:"category" json:"category"`
	Cycle      int64   `db:"cycle" json:"cycle"`
	Completed  int     `db:"completed" json:"completed"`
	Scams      int     `db:"scams" json:"scams"`
	Residual   float64 `db:"residual" json:"residual"`
	Winner     *string `db:"winner" json:"winner,omitempty"`
	SharesJSON string  `db:"shares_json" json:"-"`
	Timestamp  int64   `db:"ts" json:"ts"`
}

// StatsRow is one mirrored cycle summary. Gini is stored in basis points.
type StatsRow struct {
	ArenaID      string  `db:"arena_id" json:"arena_id"`
	Cycle        int64   `db:"cycle" json:"cycle"`
	Active       int     `db:"active" json:"active"`
	Critical     int     `db:"critical" json:"critical"`
	Exhausted    int     `db:"exhausted" json:"exhausted"`
	TotalBalance float64 `db:"total_balance" json:"total_balance"`
	GiniBps      int     `db:"gini_bps" json:"gini_bps"`
	Transactions int     `db:"transactions" json:"transactions"`
	Scams        int     `db:"scams" json:"scams"`
	Deaths       int     `db:"deaths" json:"deaths"`
	Timestamp    int64   `db:"ts" json:"ts"`
}

// InsertTransaction writes one ledger entry.
func (db *DB) InsertTransaction(arenaID, ref string, e economy.LedgerEntry) error {
	_, err := db.conn.Exec(`INSERT OR IGNORE INTO transactions
		(ref, arena_id, entry_id, from_id, to_id, amount, category, settlement_ref, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref, arenaID, e.ID, e.From, e.To, e.Amount, string(e.Category), e.SettlementRef, e.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", e.ID, err)
	}
	return nil
}

// InsertDeath writes one death record.
func (db *DB) InsertDeath(arenaID, ref string, r engine.DeathRecord) error {
	shares, err := json.Marshal(r.Shares)
	if err != nil {
		return fmt.Errorf("encode shares: %w", err)
	}
	var winner *string
	if r.Winner != "" {
		winner = &r.Winner
	}
	_, err = db.conn.Exec(`INSERT OR IGNORE INTO deaths
		(ref, arena_id, actor_id, name, category, cycle, completed, scams, residual, winner, shares_json, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref, arenaID, r.ActorID, r.Name, string(r.Category), r.Cycle, r.Completed, r.Scams,
		r.Residual, winner, string(shares), r.Time.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert death %s: %w", r.ActorID, err)
	}
	return nil
}

// UpsertStats writes the summary for one cycle.
func (db *DB) UpsertStats(arenaID string, s engine.Stats) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO arena_stats
		(arena_id, cycle, active, critical, exhausted, total_balance, gini_bps, transactions, scams, deaths, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arenaID, s.Cycle, s.Active, s.Critical, s.Exhausted, s.TotalBalance,
		int(s.Gini*10000+0.5), s.Totals.Transactions, s.Totals.Scams, s.Totals.Deaths, s.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert stats cycle %d: %w", s.Cycle, err)
	}
	return nil
}

// SaveMeta stores a key-value pair in arena metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO arena_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM arena_meta WHERE key = ?", key)
	return value, err
}

// RecentTransactions returns the most recent N mirrored transactions.
func (db *DB) RecentTransactions(arenaID string, limit int) ([]TransactionRow, error) {
	var rows []TransactionRow
	err := db.conn.Select(&rows,
		"SELECT * FROM transactions WHERE arena_id = ? ORDER BY ts DESC, rowid DESC LIMIT ?",
		arenaID, limit,
	)
	return rows, err
}

// Deaths returns every mirrored death, oldest first.
func (db *DB) Deaths(arenaID string) ([]DeathRow, error) {
	var rows []DeathRow
	err := db.conn.Select(&rows,
		"SELECT * FROM deaths WHERE arena_id = ? ORDER BY cycle, rowid",
		arenaID,
	)
	return rows, err
}

// LatestStats returns the most recent mirrored cycle summary.
func (db *DB) LatestStats(arenaID string) (StatsRow, error) {
	var row StatsRow
	err := db.conn.Get(&row,
		"SELECT * FROM arena_stats WHERE arena_id = ? ORDER BY cycle DESC LIMIT 1",
		arenaID,
	)
	return row, err
}

func nowMilli() int64 { return time.Now().UnixMilli() }
