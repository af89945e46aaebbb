// Package users persists accounts, their refresh session and their
// single-use token fields.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

// Single-use token field families.
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// Repository is the account store. Lookups return common.ErrNotFound when
// no row matches.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByEmailOrUsername returns the first user whose email or username matches.
	GetByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error

	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
	// CompareAndSwapRefreshToken replaces the stored refresh token with next
	// only if it still equals prev. It reports whether the swap happened.
	CompareAndSwapRefreshToken(ctx context.Context, id, prev, next string) (bool, error)

	SetSingleUseToken(ctx context.Context, id, purpose, hash string, expiry time.Time) error
	// ConsumeEmailVerification clears a matching unexpired verification
	// token and marks the owner verified, in one step.
	ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*models.User, error)
	// ConsumePasswordReset clears a matching unexpired reset token, stores
	// passwordHash and drops the refresh session, in one step.
	ConsumePasswordReset(ctx context.Context, hash string, now time.Time, passwordHash string) (*models.User, error)
	PurgeExpiredSingleUseTokens(ctx context.Context, now time.Time) (int64, error)
}
