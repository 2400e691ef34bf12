package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
)

// RentalQuery serves the read-only rental views: the active set, the full
// ledger and one customer's history. Rows are joined with the customer and
// title they reference and ordered newest first. It never writes.
type RentalQuery struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewRentalQuery builds the query facade over the store.
func NewRentalQuery(store *database.Store) *RentalQuery {
	driver, dialect := "sqlite3", "sqlite3"
	if store.Dialect == database.DialectMySQL {
		driver, dialect = "mysql", "mysql"
	}
	return &RentalQuery{
		db:      sqlx.NewDb(store.DB, driver),
		dialect: goqu.Dialect(dialect),
	}
}

// rentalRow is the scan target shared by the three views.
type rentalRow struct {
	ID              uint64         `db:"id"`
	CustomerID      uint64         `db:"customer_id"`
	CustomerName    sql.NullString `db:"customer_name"`
	CustomerContact sql.NullString `db:"customer_contact"`
	TitleID         uint64         `db:"title_id"`
	TitleName       string         `db:"title_name"`
	TitleCategory   sql.NullString `db:"title_category"`
	OpenedAt        string         `db:"opened_at"`
	ClosedAt        sql.NullString `db:"closed_at"`
}

func (r *RentalQuery) base(withCustomer bool) *goqu.SelectDataset {
	cols := []any{
		goqu.I("r.id").As("id"),
		goqu.I("r.customer_id").As("customer_id"),
		goqu.I("r.title_id").As("title_id"),
		goqu.I("t.name").As("title_name"),
		goqu.I("t.category").As("title_category"),
		goqu.I("r.opened_at").As("opened_at"),
		goqu.I("r.closed_at").As("closed_at"),
	}
	ds := r.dialect.From(goqu.T("rentals").As("r")).
		Join(goqu.T("titles").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("r.title_id"))))
	if withCustomer {
		cols = append(cols,
			goqu.I("c.name").As("customer_name"),
			goqu.I("c.contact").As("customer_contact"))
		ds = ds.Join(goqu.T("customers").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("r.customer_id"))))
	}
	return ds.Select(cols...).Order(goqu.I("r.opened_at").Desc(), goqu.I("r.id").Desc())
}

// Active returns the open rentals with customer and title details.
func (r *RentalQuery) Active(ctx context.Context) ([]model.RentalView, error) {
	return r.run(ctx, "activeRentals", r.base(true).Where(goqu.I("r.closed_at").IsNull()))
}

// All returns every rental, open and closed, with customer and title details.
func (r *RentalQuery) All(ctx context.Context) ([]model.RentalView, error) {
	return r.run(ctx, "allRentals", r.base(true))
}

// CustomerHistory returns one customer's rentals with title details. An
// unknown customer is reported as not found rather than an empty history.
func (r *RentalQuery) CustomerHistory(ctx context.Context, customerID uint64) ([]model.RentalView, error) {
	const op = "customerHistory"
	var one int
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`SELECT 1 FROM customers WHERE id = ?`), customerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError(op, "customer %d not found", customerID)
	}
	if err != nil {
		return nil, StorageError(op, err)
	}
	return r.run(ctx, op, r.base(false).Where(goqu.Ex{"r.customer_id": customerID}))
}

func (r *RentalQuery) run(ctx context.Context, op string, ds *goqu.SelectDataset) ([]model.RentalView, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, StorageError(op, err)
	}
	var rows []rentalRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, StorageError(op, err)
	}
	views := make([]model.RentalView, 0, len(rows))
	for _, row := range rows {
		v, err := row.view()
		if err != nil {
			return nil, StorageError(op, err)
		}
		views = append(views, v)
	}
	return views, nil
}

func (row rentalRow) view() (model.RentalView, error) {
	v := model.RentalView{
		ID:              row.ID,
		CustomerID:      row.CustomerID,
		CustomerName:    row.CustomerName.String,
		CustomerContact: row.CustomerContact.String,
		TitleID:         row.TitleID,
		TitleName:       row.TitleName,
	}
	if row.TitleCategory.Valid {
		c := row.TitleCategory.String
		v.TitleCategory = &c
	}
	opened, err := parseTime(row.OpenedAt)
	if err != nil {
		return v, err
	}
	v.OpenedAt = opened
	if row.ClosedAt.Valid {
		closed, err := parseTime(row.ClosedAt.String)
		if err != nil {
			return v, err
		}
		v.ClosedAt = &closed
	}
	return v, nil
}
