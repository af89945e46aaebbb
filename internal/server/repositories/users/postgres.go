package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

const userColumns = `id, username, email, password_hash, is_email_verified, refresh_token,
		 email_verification_token_hash, email_verification_expiry,
		 password_reset_token_hash, password_reset_expiry, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsEmailVerified, &u.RefreshToken,
		&u.EmailVerificationTokenHash, &u.EmailVerificationExpiry,
		&u.PasswordResetTokenHash, &u.PasswordResetExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, email_verification_token_hash, email_verification_expiry)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash,
		user.EmailVerificationTokenHash, user.EmailVerificationExpiry,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $2 LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, email, username))
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, token)
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// CompareAndSwapRefreshToken is a single conditional UPDATE, so concurrent
// callers presenting the same prev value cannot both win.
func (r *PostgresRepository) CompareAndSwapRefreshToken(ctx context.Context, id, prev, next string) (bool, error) {
	query :=
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`

	res, err := r.db.ExecContext(ctx, query, id, prev, next)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) SetSingleUseToken(ctx context.Context, id, purpose, hash string, expiry time.Time) error {
	var query string
	switch purpose {
	case PurposeEmailVerification:
		query = `UPDATE users SET email_verification_token_hash = $2, email_verification_expiry = $3, updated_at = now() WHERE id = $1`
	case PurposePasswordReset:
		query = `UPDATE users SET password_reset_token_hash = $2, password_reset_expiry = $3, updated_at = now() WHERE id = $1`
	default:
		return fmt.Errorf("unknown token purpose %q", purpose)
	}
	return r.execOne(ctx, query, id, hash, expiry)
}

func (r *PostgresRepository) ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	query :=
		`UPDATE users SET is_email_verified = TRUE,
		 email_verification_token_hash = NULL, email_verification_expiry = NULL, updated_at = $2
		 WHERE email_verification_token_hash = $1 AND email_verification_expiry > $2
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, hash, now))
}

func (r *PostgresRepository) ConsumePasswordReset(ctx context.Context, hash string, now time.Time, passwordHash string) (*models.User, error) {
	query :=
		`UPDATE users SET password_hash = $3, refresh_token = NULL,
		 password_reset_token_hash = NULL, password_reset_expiry = NULL, updated_at = $2
		 WHERE password_reset_token_hash = $1 AND password_reset_expiry > $2
		 RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, hash, now, passwordHash))
}

func (r *PostgresRepository) PurgeExpiredSingleUseTokens(ctx context.Context, now time.Time) (int64, error) {
	query :=
		`UPDATE users SET
		 email_verification_token_hash = CASE WHEN email_verification_expiry <= $1 THEN NULL ELSE email_verification_token_hash END,
		 email_verification_expiry = CASE WHEN email_verification_expiry <= $1 THEN NULL ELSE email_verification_expiry END,
		 password_reset_token_hash = CASE WHEN password_reset_expiry <= $1 THEN NULL ELSE password_reset_token_hash END,
		 password_reset_expiry = CASE WHEN password_reset_expiry <= $1 THEN NULL ELSE password_reset_expiry END
		 WHERE email_verification_expiry <= $1 OR password_reset_expiry <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// execOne runs an UPDATE that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
