package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smart-contact-manager/internal/model"
)

const uniqueViolation = "23505"

const userColumns = `id, email, COALESCE(password_hash, ''), name, about, phone_number, profile_pic,
	roles, provider, provider_user_id, enabled, email_verified, phone_verified, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, model.NormalizeEmail(email))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// Create inserts u. A duplicate email surfaces as model.ErrUserAlreadyExists so callers
// can treat the unique index as the arbiter of concurrent registrations.
func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, about, phone_number, profile_pic, roles,
		                    provider, provider_user_id, enabled, email_verified, phone_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Email, nullIfEmpty(u.PasswordHash), u.Name, u.About, u.PhoneNumber, u.ProfilePic, u.Roles,
		string(u.Provider), u.ProviderUserID, u.Enabled, u.EmailVerified, u.PhoneVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u model.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, name = $3, about = $4, phone_number = $5, profile_pic = $6, roles = $7,
		     enabled = $8, email_verified = $9, phone_verified = $10, updated_at = $11
		 WHERE id = $1`,
		u.ID, nullIfEmpty(u.PasswordHash), u.Name, u.About, u.PhoneNumber, u.ProfilePic, u.Roles,
		u.Enabled, u.EmailVerified, u.PhoneVerified, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY lower(email)`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var provider string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.About, &u.PhoneNumber, &u.ProfilePic,
		&u.Roles, &provider, &u.ProviderUserID, &u.Enabled, &u.EmailVerified, &u.PhoneVerified,
		&u.CreatedAt, &u.UpdatedAt)
	u.Provider = model.Provider(provider)
	return u, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
