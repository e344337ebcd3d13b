package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/subashmuthub/lab-management-system/internal/model"
	"github.com/subashmuthub/lab-management-system/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,name,email,password_hash,role,email_verified,is_active,created_at,updated_at"

// Create inserts a user with a bcrypt-hashed password and returns its ID.
// New accounts start unverified; VerifyEmail flips the flag after a
// successful OTP check.
func (r *UserRepo) Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		name, email, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// VerifyEmail marks the account's email as confirmed.
func (r *UserRepo) VerifyEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1, updated_at=? WHERE email=?",
		time.Now().UTC(), email)
	return err
}

// UpdatePassword replaces the stored hash with a bcrypt digest of the
// new password. Used by the password-reset flow after OTP verification.
func (r *UserRepo) UpdatePassword(ctx context.Context, email, password string, cost int) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE email=?",
		hash, time.Now().UTC(), email)
	return err
}
