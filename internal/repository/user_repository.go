package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/model"
	"github.com/iliyamo/video-rental/internal/utils"
)

// UserRepo stores staff accounts.
type UserRepo struct{ store *database.Store }

func NewUserRepo(store *database.Store) *UserRepo { return &UserRepo{store: store} }

var ErrEmailExists = &Error{Kind: ErrConflict, Op: "registerUser", Detail: "email already exists"}

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.store.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, created_at) VALUES (?,?,?,?)",
		email, hash, role, formatTime(time.Now()))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, StorageError("registerUser", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, StorageError("registerUser", err)
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(ctx, "SELECT id,email,password_hash,role,created_at FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.get(ctx, "SELECT id,email,password_hash,role,created_at FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) get(ctx context.Context, q string, arg any) (model.User, error) {
	var (
		u       model.User
		created string
	)
	err := r.store.DB.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return u, NotFoundError("getUser", "user not found")
	}
	if err != nil {
		return u, StorageError("getUser", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return u, StorageError("getUser", err)
	}
	return u, nil
}

// SetRole changes a staff member's role. Tokens issued earlier keep the old
// role until they expire.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role string) error {
	const op = "setUserRole"
	res, err := r.store.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
	if err != nil {
		return StorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StorageError(op, err)
	}
	if n == 0 {
		// MySQL reports zero rows for an update that changes nothing.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EnsureManager makes email a manager account, creating it with password
// when it does not exist yet. It reports whether an account was created.
func (r *UserRepo) EnsureManager(ctx context.Context, email, password string, cost int) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == model.RoleManager {
			return false, nil
		}
		return false, r.SetRole(ctx, u.ID, model.RoleManager)
	case errors.Is(err, ErrNotFound):
		_, err = r.Create(ctx, email, password, model.RoleManager, cost)
		return err == nil, err
	default:
		return false, err
	}
}
