// Package repository contains data access logic for the rental store. This
// file defines the catalog repository over the titles table. A Title is a
// rentable movie; its availability flag is owned by the rental ledger and is
// only written through the *Tx methods below.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sql.ErrNoRows comparisons
	"strings"      // trimming user input
	"time"         // current year for release year validation

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
)

// Release years accepted by Create: from minYear up to next year.
const minYear = 1900

// TitleRepo manages persistence for titles.
type TitleRepo struct {
	store *database.Store
}

// NewTitleRepo returns a new TitleRepo bound to the provided store.
func NewTitleRepo(store *database.Store) *TitleRepo { return &TitleRepo{store: store} }

const titleColumns = `id, name, category, year, available`

// Create validates and inserts a new title. New titles always start
// available. Category is trimmed and stored as NULL when empty.
func (r *TitleRepo) Create(ctx context.Context, name string, category *string, year *int) (*model.Title, error) {
	const op = "addTitle"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError(op, "name is required")
	}
	if year != nil {
		maxYear := time.Now().UTC().Year() + 1
		if *year < minYear || *year > maxYear {
			return nil, ValidationError(op, "year must be between %d and %d", minYear, maxYear)
		}
	}
	var cat sql.NullString
	if category != nil {
		if c := strings.TrimSpace(*category); c != "" {
			cat = sql.NullString{String: c, Valid: true}
		}
	}
	var yr sql.NullInt64
	if year != nil {
		yr = sql.NullInt64{Int64: int64(*year), Valid: true}
	}
	res, err := r.store.DB.ExecContext(ctx,
		`INSERT INTO titles (name, category, year, available) VALUES (?, ?, ?, 1)`,
		name, cat, yr)
	if err != nil {
		return nil, StorageError(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, StorageError(op, err)
	}
	t := &model.Title{ID: uint64(id), Name: name, Available: true}
	if cat.Valid {
		c := cat.String
		t.Category = &c
	}
	if yr.Valid {
		y := int(yr.Int64)
		t.Year = &y
	}
	return t, nil
}

// List returns every title ordered by name ascending.
func (r *TitleRepo) List(ctx context.Context) ([]model.Title, error) {
	return r.list(ctx, "listTitles",
		`SELECT `+titleColumns+` FROM titles ORDER BY name ASC, id ASC`)
}

// ListAvailable returns the titles that can be rented right now, ordered by
// name ascending.
func (r *TitleRepo) ListAvailable(ctx context.Context) ([]model.Title, error) {
	return r.list(ctx, "listAvailableTitles",
		`SELECT `+titleColumns+` FROM titles WHERE available = 1 ORDER BY name ASC, id ASC`)
}

func (r *TitleRepo) list(ctx context.Context, op, q string) ([]model.Title, error) {
	rows, err := r.store.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, StorageError(op, err)
	}
	defer rows.Close()
	titles := make([]model.Title, 0)
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, StorageError(op, err)
		}
		titles = append(titles, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageError(op, err)
	}
	return titles, nil
}

// GetByID returns the title with the given id or ErrTitleNotFound.
func (r *TitleRepo) GetByID(ctx context.Context, id uint64) (*model.Title, error) {
	row := r.store.DB.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id)
	t, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTitleNotFound
	}
	if err != nil {
		return nil, StorageError("getTitleById", err)
	}
	return t, nil
}

// GetForUpdateTx reads a title inside the caller's transaction, locking the
// row on backends that support it so the availability check and the
// following write cannot interleave with another transaction. It returns
// sql.ErrNoRows when the title does not exist.
func (r *TitleRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Title, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = ?`+r.store.LockSuffix(), id)
	return scanTitle(row)
}

// SetAvailabilityTx flips the availability flag inside the caller's
// transaction only when it currently holds the opposite value. It reports
// whether the row changed; false means another transaction already flipped
// it or the title does not exist. Only the rental ledger calls this.
func (r *TitleRepo) SetAvailabilityTx(ctx context.Context, tx *sql.Tx, id uint64, available bool) (bool, error) {
	to, from := 0, 1
	if available {
		to, from = 1, 0
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE titles SET available = ? WHERE id = ? AND available = ?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTitle(s rowScanner) (*model.Title, error) {
	var (
		t   model.Title
		cat sql.NullString
		yr  sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Name, &cat, &yr, &t.Available); err != nil {
		return nil, err
	}
	if cat.Valid {
		c := cat.String
		t.Category = &c
	}
	if yr.Valid {
		y := int(yr.Int64)
		t.Year = &y
	}
	return &t, nil
}
