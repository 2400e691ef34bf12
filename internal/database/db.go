// Package database owns the store handle: opening the connection pool for the
// configured driver, creating the schema and running units of work inside a
// transaction.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend behind a Store.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Options selects the backend and its connection parameters. SQLite only
// reads Path; MySQL reads the remaining fields.
type Options struct {
	Driver Dialect
	Path   string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// Store is the single owned handle to the relational store. It is opened
// once at process start and closed at shutdown.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open connects to the configured backend and verifies the connection.
func Open(opts Options) (*Store, error) {
	switch opts.Driver {
	case DialectMySQL:
		db, err := openMySQL(opts)
		if err != nil {
			return nil, err
		}
		return &Store{DB: db, Dialect: DialectMySQL}, nil
	case DialectSQLite, "":
		db, err := openSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return &Store{DB: db, Dialect: DialectSQLite}, nil
	default:
		return nil, errors.Errorf("unsupported db driver %q", opts.Driver)
	}
}

func openMySQL(opts Options) (*sql.DB, error) {
	auth := opts.User
	if opts.Pass != "" {
		auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
	}
	// parseTime is left off: rental timestamps are stored as fixed-width text.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC",
		auth, opts.Host, opts.Port, opts.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		path = "rental.db"
	}
	// foreign_keys must be enabled per connection for the cascade/restrict rules.
	// _txlock=immediate takes the write lock at BEGIN so check-then-act runs serialized.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite allows a single writer; one pooled connection keeps writers queued
	// in database/sql instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// LockSuffix returns the row-locking clause appended to SELECTs that precede
// a write in the same transaction. SQLite has no row locks; its immediate
// transactions already hold the database write lock.
func (s *Store) LockSuffix() string {
	if s.Dialect == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, so no partial write survives a
// failed unit of work.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}
