package database

import (
	"context"

	"github.com/pkg/errors"
)

// TimeLayout is the fixed-width UTC layout used for every timestamp column.
// Fixed width keeps lexical order equal to chronological order, which the
// "opened_at DESC" views rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS titles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT,
		year INTEGER,
		available INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rentals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		title_id INTEGER NOT NULL,
		opened_at TEXT NOT NULL,
		closed_at TEXT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE,
		FOREIGN KEY (title_id) REFERENCES titles(id) ON DELETE RESTRICT
	)`,
	// At most one open rental per title, enforced by the store as well.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_rentals_open_title ON rentals(title_id) WHERE closed_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_rentals_customer ON rentals(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_titles_available_name ON titles(available, name)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS titles (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(120) NULL,
		year INT NULL,
		available TINYINT(1) NOT NULL DEFAULT 1,
		INDEX idx_titles_available_name (available, name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		contact VARCHAR(255) NOT NULL,
		UNIQUE KEY ux_customers_contact (contact)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	// open_title_id is non-null only while the rental is open; the unique key
	// therefore allows one open rental per title and any number of closed ones.
	`CREATE TABLE IF NOT EXISTS rentals (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		customer_id BIGINT UNSIGNED NOT NULL,
		title_id BIGINT UNSIGNED NOT NULL,
		opened_at VARCHAR(40) NOT NULL,
		closed_at VARCHAR(40) NULL,
		open_title_id BIGINT UNSIGNED AS (IF(closed_at IS NULL, title_id, NULL)) STORED,
		UNIQUE KEY ux_rentals_open_title (open_title_id),
		INDEX idx_rentals_customer (customer_id),
		CONSTRAINT fk_rentals_customer FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE CASCADE,
		CONSTRAINT fk_rentals_title FOREIGN KEY (title_id) REFERENCES titles(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		UNIQUE KEY ux_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the schema if it does not exist yet. It is idempotent and
// must run once before any repository or ledger call.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.Dialect == DialectMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
