package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
)

// contactPattern accepts a simple local@domain.tld shape.
var contactPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CustomerRepo provides CRUD operations over the customers table. Contact
// uniqueness is enforced by the store's unique key, so a duplicate insert or
// update fails without partial effect.
type CustomerRepo struct {
	store *database.Store
}

// NewCustomerRepo returns a new CustomerRepo bound to the provided store.
func NewCustomerRepo(store *database.Store) *CustomerRepo { return &CustomerRepo{store: store} }

// normalizeCustomer trims the name and lower-cases the contact, then checks
// both against the customer constraints.
func normalizeCustomer(op, name, contact string) (string, string, error) {
	name = strings.TrimSpace(name)
	contact = strings.ToLower(strings.TrimSpace(contact))
	if name == "" {
		return "", "", ValidationError(op, "name is required")
	}
	if contact == "" {
		return "", "", ValidationError(op, "contact is required")
	}
	if !contactPattern.MatchString(contact) {
		return "", "", ValidationError(op, "contact %q is not a valid e-mail address", contact)
	}
	return name, contact, nil
}

// Create inserts a customer and returns it with its assigned id.
func (r *CustomerRepo) Create(ctx context.Context, name, contact string) (*model.Customer, error) {
	const op = "addCustomer"
	name, contact, err := normalizeCustomer(op, name, contact)
	if err != nil {
		return nil, err
	}
	res, err := r.store.DB.ExecContext(ctx,
		`INSERT INTO customers (name, contact) VALUES (?, ?)`, name, contact)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ConflictError(op, "contact %q already registered", contact)
		}
		return nil, StorageError(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, StorageError(op, err)
	}
	return &model.Customer{ID: uint64(id), Name: name, Contact: contact}, nil
}

// List returns all customers ordered by name.
func (r *CustomerRepo) List(ctx context.Context) ([]model.Customer, error) {
	const op = "listCustomers"
	rows, err := r.store.DB.QueryContext(ctx,
		`SELECT id, name, contact FROM customers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, StorageError(op, err)
	}
	defer rows.Close()
	customers := make([]model.Customer, 0)
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Contact); err != nil {
			return nil, StorageError(op, err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageError(op, err)
	}
	return customers, nil
}

// GetByID fetches a customer by id. It returns ErrCustomerNotFound when no
// row matches.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
	var c model.Customer
	err := r.store.DB.QueryRowContext(ctx,
		`SELECT id, name, contact FROM customers WHERE id = ?`, id).Scan(&c.ID, &c.Name, &c.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, StorageError("getCustomerById", err)
	}
	return &c, nil
}

// ExistsTx reports whether a customer row exists, inside the caller's
// transaction.
func (r *CustomerRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Update changes a customer's name and contact. The existence check and the
// write share one transaction so a concurrent delete cannot slip between
// them.
func (r *CustomerRepo) Update(ctx context.Context, id uint64, name, contact string) (*model.Customer, error) {
	const op = "updateCustomer"
	name, contact, err := normalizeCustomer(op, name, contact)
	if err != nil {
		return nil, err
	}
	err = r.store.WithTx(ctx, func(tx *sql.Tx) error {
		exists, err := r.ExistsTx(ctx, tx, id)
		if err != nil {
			return StorageError(op, err)
		}
		if !exists {
			return NotFoundError(op, "customer %d not found", id)
		}
		// MySQL reports zero affected rows for a no-op update, so RowsAffected
		// is not used as an existence signal here.
		if _, err := tx.ExecContext(ctx,
			`UPDATE customers SET name = ?, contact = ? WHERE id = ?`, name, contact, id); err != nil {
			if database.IsUniqueViolation(err) {
				return ConflictError(op, "contact %q already registered", contact)
			}
			return StorageError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, StorageError(op, err)
	}
	return &model.Customer{ID: id, Name: name, Contact: contact}, nil
}

// Delete removes a customer. The foreign key cascades the customer's closed
// rental history away with it. A customer who still holds an open rental is
// refused with a conflict: cascading an open rental would leave its title
// flagged unavailable with no rental to return.
func (r *CustomerRepo) Delete(ctx context.Context, id uint64) error {
	const op = "deleteCustomer"
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM customers WHERE id = ?`+r.store.LockSuffix(), id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFoundError(op, "customer %d not found", id)
		}
		if err != nil {
			return StorageError(op, err)
		}
		var open int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM rentals WHERE customer_id = ? AND closed_at IS NULL`, id).Scan(&open); err != nil {
			return StorageError(op, err)
		}
		if open > 0 {
			return ConflictError(op, "customer %d has %d open rental(s)", id, open)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id); err != nil {
			return StorageError(op, err)
		}
		return nil
	})
	return StorageError(op, err)
}
