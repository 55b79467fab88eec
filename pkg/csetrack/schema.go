package csetrack

import (
	"database/sql"
	"fmt"
)

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS holdings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			name TEXT,
			sector TEXT,
			quantity REAL NOT NULL DEFAULT 0,
			avg_price REAL NOT NULL DEFAULT 0,
			total_invested REAL NOT NULL DEFAULT 0,
			initial_buy_price REAL NOT NULL DEFAULT 0,
			last_buy_price REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'sold')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			transaction_type TEXT NOT NULL CHECK(transaction_type IN ('BUY', 'SELL', 'DIVIDEND')),
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			fees REAL NOT NULL DEFAULT 0,
			total_amount REAL NOT NULL,
			notes TEXT,
			reference TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}
	if err := exec(tx, "CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)"); err != nil {
		return err
	}
	if err := exec(tx, "CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol)"); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS trading_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type TEXT NOT NULL,
			threshold REAL NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK(id = 1),
			total_capital REAL NOT NULL DEFAULT 0,
			discipline_buy_threshold REAL NOT NULL DEFAULT 15,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}
	if err := exec(tx, "INSERT OR IGNORE INTO settings (id, total_capital, discipline_buy_threshold) VALUES (1, 0, 15)"); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS latest_prices (
			symbol TEXT PRIMARY KEY,
			price REAL NOT NULL,
			source TEXT NOT NULL DEFAULT 'manual',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS allocation_targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			allocation_percent REAL NOT NULL DEFAULT 0,
			is_priority INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS allocation_tranches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			target_id INTEGER NOT NULL REFERENCES allocation_targets(id) ON DELETE CASCADE,
			label TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			percent REAL NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS operation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			operation_type TEXT NOT NULL,
			symbol TEXT,
			details TEXT,
			old_value REAL,
			new_value REAL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	return tx.Commit()
}

func exec(tx *sql.Tx, query string) error {
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("schema statement failed: %w", err)
	}
	return nil
}
