package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    saved_at TEXT NOT NULL,
    machine_id TEXT,
    profile_mode TEXT NOT NULL,
    initial_capital REAL NOT NULL,
    min_capital REAL NOT NULL,
    total_profit REAL NOT NULL DEFAULT 0,
    daily_profit REAL NOT NULL DEFAULT 0,
    day_start_balance REAL NOT NULL DEFAULT 0,
    last_date TEXT,
    current_month TEXT,
    absolute_stop INTEGER NOT NULL DEFAULT 0,
    monthly_stop INTEGER NOT NULL DEFAULT 0,
    monthly_stop_month TEXT,
    daily_consecutive_wins INTEGER NOT NULL DEFAULT 0,
    daily_consecutive_losses INTEGER NOT NULL DEFAULT 0,
    daily_lock INTEGER NOT NULL DEFAULT 0,
    daily_lock_reason TEXT,
    daily_lock_time TEXT,
    max_daily_consecutive INTEGER NOT NULL DEFAULT 2
);

CREATE TABLE IF NOT EXISTS open_orders (
    id TEXT PRIMARY KEY,
    instrument TEXT NOT NULL,
    listing TEXT NOT NULL,
    direction TEXT NOT NULL,
    stake REAL NOT NULL,
    entry_time TEXT NOT NULL,
    expiry_time TEXT NOT NULL,
    entry_rsi REAL NOT NULL,
    balance_before REAL NOT NULL,
    asset_group TEXT NOT NULL,
    status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS instrument_stats (
    instrument TEXT PRIMARY KEY,
    wins INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    ties INTEGER NOT NULL DEFAULT 0,
    consecutive_losses INTEGER NOT NULL DEFAULT 0,
    last_signal_time TEXT
);

CREATE TABLE IF NOT EXISTS monthly_ledger (
    month TEXT PRIMARY KEY,
    profit REAL NOT NULL DEFAULT 0,
    starting_balance REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS indicator_history (
    instrument TEXT PRIMARY KEY,
    readings TEXT NOT NULL
);
`

// ApplyMigrations creates the snapshot tables when missing.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
