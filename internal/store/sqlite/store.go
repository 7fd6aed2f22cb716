// Package sqlite persists the simulator's account, trade journal, recorded
// ticks and equity snapshots in a single SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the store.
type Config struct {
	// DBPath is the database file, e.g. "data/tradesim.db".
	DBPath string
	// Account names the portfolio row this process owns.
	Account string
	Logger  zerolog.Logger
}

// Store is a single-connection SQLite store. All writes go through one
// connection, so SQLite's own locking serializes them.
type Store struct {
	db      *sql.DB
	account string
	log     zerolog.Logger
}

// Open creates or opens the database with WAL mode and applies the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	account := cfg.Account
	if account == "" {
		account = "default"
	}
	s := &Store{db: db, account: account, log: cfg.Logger.With().Str("component", "sqlite").Logger()}
	s.log.Info().Str("path", cfg.DBPath).Str("account", account).Msg("database opened")
	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			account     TEXT PRIMARY KEY,
			cash        TEXT NOT NULL,
			realized_pl TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS holdings (
			account  TEXT    NOT NULL,
			position INTEGER NOT NULL,
			symbol   TEXT    NOT NULL,
			qty      INTEGER NOT NULL,
			avg_cost TEXT    NOT NULL,
			PRIMARY KEY (account, symbol)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id        TEXT PRIMARY KEY,
			account   TEXT    NOT NULL,
			symbol    TEXT    NOT NULL,
			side      TEXT    NOT NULL,
			qty       INTEGER NOT NULL,
			price     TEXT    NOT NULL,
			fee       TEXT    NOT NULL,
			total     TEXT    NOT NULL,
			source    TEXT    NOT NULL,
			ts        TEXT    NOT NULL,
			seq       INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_account_seq ON trades(account, seq);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);

		CREATE TABLE IF NOT EXISTS ticks (
			symbol TEXT    NOT NULL,
			seq    INTEGER NOT NULL,
			label  TEXT    NOT NULL,
			price  REAL    NOT NULL,
			open   REAL,
			high   REAL,
			low    REAL,
			close  REAL,
			ts     INTEGER NOT NULL,
			PRIMARY KEY (symbol, seq)
		);

		CREATE TABLE IF NOT EXISTS equity_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			account       TEXT NOT NULL,
			ts            TEXT NOT NULL,
			cash          TEXT NOT NULL,
			market_value  TEXT NOT NULL,
			equity        TEXT NOT NULL,
			realized_pl   TEXT NOT NULL,
			unrealized_pl TEXT NOT NULL
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
