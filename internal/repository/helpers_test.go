package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(database.Options{
		Driver: database.DialectSQLite,
		Path:   filepath.Join(t.TempDir(), "rental.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// openRental writes an open rental the way the ledger does: flag flip and
// insert in one transaction.
func openRental(t *testing.T, store *database.Store, customerID, titleID uint64, at time.Time) *model.Rental {
	t.Helper()
	ctx := context.Background()
	titles := NewTitleRepo(store)
	rentals := NewRentalRepo(store)
	r := &model.Rental{CustomerID: customerID, TitleID: titleID, OpenedAt: at}
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		ok, err := titles.SetAvailabilityTx(ctx, tx, titleID, false)
		require.True(t, ok)
		if err != nil {
			return err
		}
		return rentals.CreateTx(ctx, tx, r)
	})
	require.NoError(t, err)
	return r
}

func closeRental(t *testing.T, store *database.Store, rentalID, titleID uint64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	titles := NewTitleRepo(store)
	rentals := NewRentalRepo(store)
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		ok, err := rentals.CloseTx(ctx, tx, rentalID, at)
		require.True(t, ok)
		if err != nil {
			return err
		}
		_, err = titles.SetAvailabilityTx(ctx, tx, titleID, true)
		return err
	})
	require.NoError(t, err)
}

// countOpen reports how many open rentals reference the title.
func countOpen(t *testing.T, store *database.Store, titleID uint64) int {
	t.Helper()
	var n int
	require.NoError(t, store.DB.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM rentals WHERE title_id = ? AND closed_at IS NULL`, titleID).Scan(&n))
	return n
}
