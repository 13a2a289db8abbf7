package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailventures/tours-api/internal/domain"
)

// UsersRepo is the credential store the auth core talks to. Lookups return
// (nil, nil) when no matching active user exists.
type UsersRepo interface {
	Create(ctx context.Context, name, email, passwordHash string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetPassword updates the password hash, records the change instant and
	// clears any live reset token in the same statement.
	SetPassword(ctx context.Context, id int64, newHash string, changedAt time.Time) error

	// SetResetToken stores the hash of a freshly generated reset token,
	// superseding any previous one for the user.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id int64) error

	// ConsumeResetToken atomically matches an unexpired reset token hash,
	// installs the new password, records the change instant and clears the
	// token. Returns (nil, nil) when no live token matches, which covers
	// wrong, already-used and expired tokens alike.
	ConsumeResetToken(ctx context.Context, tokenHash, newHash string, changedAt time.Time) (*domain.User, error)

	UpdateProfile(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error)
	AdminUpdate(ctx context.Context, id int64, req *domain.AdminUpdateUserRequest) (*domain.User, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
}

type UsersRepoImpl struct{ pool *pgxpool.Pool }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepoImpl { return &UsersRepoImpl{pool: pool} }

const userCols = `id, role, email, password_hash, name, photo, active,
password_changed_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Photo, &u.Active,
		&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepoImpl) Create(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	const q = `
INSERT INTO users (name, email, password_hash)
VALUES ($1,$2,$3)
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var u domain.User
	if err := r.pool.QueryRow(ctx, q, name, email, passwordHash).Scan(
		&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Photo, &u.Active,
		&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepoImpl) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UsersRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1 AND active`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UsersRepoImpl) SetPassword(ctx context.Context, id int64, newHash string, changedAt time.Time) error {
	const q = `
UPDATE users
SET password_hash=$2, password_changed_at=$3,
    password_reset_hash=NULL, password_reset_expires_at=NULL,
    updated_at=now()
WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, newHash, changedAt)
	return err
}

func (r *UsersRepoImpl) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	const q = `
UPDATE users
SET password_reset_hash=$2, password_reset_expires_at=$3, updated_at=now()
WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, tokenHash, expiresAt)
	return err
}

func (r *UsersRepoImpl) ClearResetToken(ctx context.Context, id int64) error {
	const q = `
UPDATE users
SET password_reset_hash=NULL, password_reset_expires_at=NULL, updated_at=now()
WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *UsersRepoImpl) ConsumeResetToken(ctx context.Context, tokenHash, newHash string, changedAt time.Time) (*domain.User, error) {
	// Single statement so two concurrent consumers cannot both succeed: the
	// row predicate only matches while the token is live.
	const q = `
UPDATE users
SET password_hash=$2, password_changed_at=$3,
    password_reset_hash=NULL, password_reset_expires_at=NULL,
    updated_at=now()
WHERE password_reset_hash=$1 AND password_reset_expires_at > now() AND active
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanUser(r.pool.QueryRow(ctx, q, tokenHash, newHash, changedAt))
}

func (r *UsersRepoImpl) UpdateProfile(ctx context.Context, id int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	const q = `
UPDATE users
SET name=COALESCE($2, name), email=COALESCE($3, email), updated_at=now()
WHERE id=$1 AND active
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var email *string
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		email = &e
	}
	return scanUser(r.pool.QueryRow(ctx, q, id, req.Name, email))
}

func (r *UsersRepoImpl) AdminUpdate(ctx context.Context, id int64, req *domain.AdminUpdateUserRequest) (*domain.User, error) {
	const q = `
UPDATE users
SET name=COALESCE($2, name), email=COALESCE($3, email), role=COALESCE($4, role), updated_at=now()
WHERE id=$1
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var email *string
	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		email = &e
	}
	return scanUser(r.pool.QueryRow(ctx, q, id, req.Name, email, req.Role))
}

func (r *UsersRepoImpl) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE users SET active=FALSE, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *UsersRepoImpl) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *UsersRepoImpl) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE active ORDER BY id LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.Name, &u.Photo, &u.Active,
			&u.PasswordChangedAt, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
