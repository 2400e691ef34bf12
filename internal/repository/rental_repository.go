package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
)

// RentalRepo provides persistence for the rentals table. The write methods
// take the caller's transaction: opening and closing a rental always pairs
// the rental write with a title availability flip, and the ledger commits
// both together. All timestamps are UTC.
type RentalRepo struct {
	store *database.Store
}

// NewRentalRepo returns a new RentalRepo bound to the given store.
func NewRentalRepo(store *database.Store) *RentalRepo { return &RentalRepo{store: store} }

// formatTime renders t in the fixed-width column layout.
func formatTime(t time.Time) string { return t.UTC().Format(database.TimeLayout) }

// parseTime reads a timestamp column back. RFC3339 is accepted as well so
// rows written by other tools still load.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(database.TimeLayout, s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, s)
	if err2 != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// CreateTx inserts an open rental within the scope of an existing
// transaction and populates the generated ID on the provided record. The
// caller must commit or roll back the transaction.
func (r *RentalRepo) CreateTx(ctx context.Context, tx *sql.Tx, rental *model.Rental) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rentals (customer_id, title_id, opened_at) VALUES (?, ?, ?)`,
		rental.CustomerID, rental.TitleID, formatTime(rental.OpenedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rental.ID = uint64(id)
	rental.ClosedAt = nil
	return nil
}

// GetOpenForUpdateTx loads a rental only if it is still open, locking the
// row where the backend supports it. A closed or missing rental yields
// sql.ErrNoRows; the single lookup therefore also guards against a double
// return.
func (r *RentalRepo) GetOpenForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Rental, error) {
	var (
		rental model.Rental
		opened string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, customer_id, title_id, opened_at FROM rentals
		 WHERE id = ? AND closed_at IS NULL`+r.store.LockSuffix(), id).
		Scan(&rental.ID, &rental.CustomerID, &rental.TitleID, &opened)
	if err != nil {
		return nil, err
	}
	if rental.OpenedAt, err = parseTime(opened); err != nil {
		return nil, err
	}
	return &rental, nil
}

// CloseTx stamps closed_at on an open rental. It reports false when the
// rental was already closed, so closed_at is written at most once.
func (r *RentalRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, closedAt time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rentals SET closed_at = ? WHERE id = ? AND closed_at IS NULL`,
		formatTime(closedAt), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetByID returns a single rental, open or closed.
func (r *RentalRepo) GetByID(ctx context.Context, id uint64) (*model.Rental, error) {
	const op = "getRentalById"
	var (
		rental model.Rental
		opened string
		closed sql.NullString
	)
	err := r.store.DB.QueryRowContext(ctx,
		`SELECT id, customer_id, title_id, opened_at, closed_at FROM rentals WHERE id = ?`, id).
		Scan(&rental.ID, &rental.CustomerID, &rental.TitleID, &opened, &closed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError(op, "rental %d not found", id)
	}
	if err != nil {
		return nil, StorageError(op, err)
	}
	if rental.OpenedAt, err = parseTime(opened); err != nil {
		return nil, StorageError(op, err)
	}
	if closed.Valid {
		t, err := parseTime(closed.String)
		if err != nil {
			return nil, StorageError(op, err)
		}
		rental.ClosedAt = &t
	}
	return &rental, nil
}

// InconsistentTitles lists ids of titles whose availability flag disagrees
// with their open rentals. A healthy store returns an empty slice.
func (r *RentalRepo) InconsistentTitles(ctx context.Context) ([]uint64, error) {
	const op = "checkAvailability"
	rows, err := r.store.DB.QueryContext(ctx,
		`SELECT t.id FROM titles t
		 LEFT JOIN rentals r ON r.title_id = t.id AND r.closed_at IS NULL
		 GROUP BY t.id, t.available
		 HAVING (t.available = 1 AND COUNT(r.id) > 0)
		     OR (t.available = 0 AND COUNT(r.id) <> 1)
		 ORDER BY t.id`)
	if err != nil {
		return nil, StorageError(op, err)
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, StorageError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageError(op, err)
	}
	return ids, nil
}
