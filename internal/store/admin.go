package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/admingate/apiserver/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// AdminRepository handles persistence for admin accounts.
type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// adminColumns lists every column except password_hash. The hash is only
// loaded by GetCredentialsByEmail; default reads never see it.
const adminColumns = `
	id, name, email, role, permissions, status, is_verified,
	verification_token, verification_token_expiry,
	password_reset_token, password_reset_expiry,
	avatar_key, last_login_at, notes, created_at, updated_at`

func scanAdmin(row *sql.Row) (types.Admin, error) {
	var admin types.Admin
	err := row.Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.Role,
		pq.Array(&admin.Permissions),
		&admin.Status,
		&admin.IsVerified,
		&admin.VerificationTokenHash,
		&admin.VerificationExpiry,
		&admin.ResetTokenHash,
		&admin.ResetExpiry,
		&admin.AvatarKey,
		&admin.LastLoginAt,
		&admin.Notes,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}
	return admin, nil
}

func (r *AdminRepository) Create(ctx context.Context, admin types.Admin) (types.Admin, error) {
	now := time.Now()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const query = `
		INSERT INTO admins (
			name, email, password_hash, role, permissions, status, is_verified,
			verification_token, verification_token_expiry, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		pq.Array(admin.Permissions),
		admin.Status,
		admin.IsVerified,
		admin.VerificationTokenHash,
		admin.VerificationExpiry,
		admin.Notes,
		admin.CreatedAt,
		admin.UpdatedAt,
	).Scan(&admin.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.Admin{}, ErrConflict
		}
		return types.Admin{}, err
	}
	return admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id int) (types.Admin, error) {
	const query = `SELECT` + adminColumns + `
		FROM admins WHERE id = $1`
	return scanAdmin(r.db.QueryRowContext(ctx, query, id))
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (types.Admin, error) {
	const query = `SELECT` + adminColumns + `
		FROM admins WHERE lower(email) = lower($1)`
	return scanAdmin(r.db.QueryRowContext(ctx, query, email))
}

// GetCredentialsByEmail loads an admin including the password hash.
// Only the authentication paths use this query.
func (r *AdminRepository) GetCredentialsByEmail(ctx context.Context, email string) (types.Admin, error) {
	const query = `
		SELECT password_hash,` + adminColumns + `
		FROM admins WHERE lower(email) = lower($1)`
	var admin types.Admin
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&admin.PasswordHash,
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.Role,
		pq.Array(&admin.Permissions),
		&admin.Status,
		&admin.IsVerified,
		&admin.VerificationTokenHash,
		&admin.VerificationExpiry,
		&admin.ResetTokenHash,
		&admin.ResetExpiry,
		&admin.AvatarKey,
		&admin.LastLoginAt,
		&admin.Notes,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}
	return admin, nil
}

// GetCredentialsByID loads an admin including the password hash by ID.
func (r *AdminRepository) GetCredentialsByID(ctx context.Context, id int) (types.Admin, error) {
	const query = `
		SELECT password_hash,` + adminColumns + `
		FROM admins WHERE id = $1`
	var admin types.Admin
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&admin.PasswordHash,
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.Role,
		pq.Array(&admin.Permissions),
		&admin.Status,
		&admin.IsVerified,
		&admin.VerificationTokenHash,
		&admin.VerificationExpiry,
		&admin.ResetTokenHash,
		&admin.ResetExpiry,
		&admin.AvatarKey,
		&admin.LastLoginAt,
		&admin.Notes,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Admin{}, ErrNotFound
		}
		return types.Admin{}, err
	}
	return admin, nil
}

// GetByVerificationToken finds the admin holding an unexpired verification
// token whose SHA-256 digest matches tokenHash.
func (r *AdminRepository) GetByVerificationToken(ctx context.Context, tokenHash string) (types.Admin, error) {
	const query = `SELECT` + adminColumns + `
		FROM admins
		WHERE verification_token = $1 AND verification_token_expiry > NOW()`
	return scanAdmin(r.db.QueryRowContext(ctx, query, tokenHash))
}

// GetByResetToken finds the admin holding an unexpired password reset token
// whose SHA-256 digest matches tokenHash.
func (r *AdminRepository) GetByResetToken(ctx context.Context, tokenHash string) (types.Admin, error) {
	const query = `SELECT` + adminColumns + `
		FROM admins
		WHERE password_reset_token = $1 AND password_reset_expiry > NOW()`
	return scanAdmin(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *AdminRepository) SetVerificationToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error {
	const query = `
		UPDATE admins
		SET verification_token = $1,
			verification_token_expiry = $2,
			updated_at = $3
		WHERE id = $4`
	return r.exec(ctx, query, tokenHash, expiry, time.Now(), id)
}

// MarkVerified flips the account to verified and clears the token pair,
// making the token single-use.
func (r *AdminRepository) MarkVerified(ctx context.Context, id int) error {
	const query = `
		UPDATE admins
		SET is_verified = TRUE,
			verification_token = NULL,
			verification_token_expiry = NULL,
			updated_at = $1
		WHERE id = $2`
	return r.exec(ctx, query, time.Now(), id)
}

func (r *AdminRepository) SetResetToken(ctx context.Context, id int, tokenHash string, expiry time.Time) error {
	const query = `
		UPDATE admins
		SET password_reset_token = $1,
			password_reset_expiry = $2,
			updated_at = $3
		WHERE id = $4`
	return r.exec(ctx, query, tokenHash, expiry, time.Now(), id)
}

// UpdatePassword replaces the stored hash and clears any outstanding reset token.
func (r *AdminRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE admins
		SET password_hash = $1,
			password_reset_token = NULL,
			password_reset_expiry = NULL,
			updated_at = $2
		WHERE id = $3`
	return r.exec(ctx, query, passwordHash, time.Now(), id)
}

// UpdateProfile mutates the caller-editable fields only.
func (r *AdminRepository) UpdateProfile(ctx context.Context, id int, name, notes string) error {
	const query = `
		UPDATE admins
		SET name = $1,
			notes = $2,
			updated_at = $3
		WHERE id = $4`
	return r.exec(ctx, query, name, notes, time.Now(), id)
}

func (r *AdminRepository) SetStatus(ctx context.Context, id int, status types.AdminStatus) error {
	const query = `
		UPDATE admins
		SET status = $1,
			updated_at = $2
		WHERE id = $3`
	return r.exec(ctx, query, status, time.Now(), id)
}

func (r *AdminRepository) SetAvatarKey(ctx context.Context, id int, key string) error {
	const query = `
		UPDATE admins
		SET avatar_key = $1,
			updated_at = $2
		WHERE id = $3`
	return r.exec(ctx, query, key, time.Now(), id)
}

func (r *AdminRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	const query = `
		UPDATE admins
		SET last_login_at = $1,
			updated_at = $2
		WHERE id = $3`
	return r.exec(ctx, query, at, time.Now(), id)
}

func (r *AdminRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
