package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in a map behind one mutex. Every method is
// a single critical section, so compare-and-swap and consume are
// linearizable. Returned users are copies.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User)}
}

func clone(u *models.User) *models.User {
	c := *u
	c.RefreshToken = clonePtr(u.RefreshToken)
	c.EmailVerificationTokenHash = clonePtr(u.EmailVerificationTokenHash)
	c.EmailVerificationExpiry = clonePtr(u.EmailVerificationExpiry)
	c.PasswordResetTokenHash = clonePtr(u.PasswordResetTokenHash)
	c.PasswordResetExpiry = clonePtr(u.PasswordResetExpiry)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return nil, fmt.Errorf("db error: %w", common.ErrDuplicateUser)
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryRepository) GetByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email || u.Username == username })
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryRepository) SetRefreshToken(_ context.Context, id, token string) error {
	return r.update(id, func(u *models.User) { u.RefreshToken = &token })
}

func (r *MemoryRepository) ClearRefreshToken(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) { u.RefreshToken = nil })
}

func (r *MemoryRepository) CompareAndSwapRefreshToken(_ context.Context, id, prev, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != prev {
		return false, nil
	}
	u.RefreshToken = &next
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryRepository) SetSingleUseToken(_ context.Context, id, purpose, hash string, expiry time.Time) error {
	switch purpose {
	case PurposeEmailVerification:
		return r.update(id, func(u *models.User) {
			u.EmailVerificationTokenHash = &hash
			u.EmailVerificationExpiry = &expiry
		})
	case PurposePasswordReset:
		return r.update(id, func(u *models.User) {
			u.PasswordResetTokenHash = &hash
			u.PasswordResetExpiry = &expiry
		})
	default:
		return fmt.Errorf("unknown token purpose %q", purpose)
	}
}

func (r *MemoryRepository) ConsumeEmailVerification(_ context.Context, hash string, now time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if live(u.EmailVerificationTokenHash, u.EmailVerificationExpiry, hash, now) {
			u.IsEmailVerified = true
			u.EmailVerificationTokenHash = nil
			u.EmailVerificationExpiry = nil
			u.UpdatedAt = now
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) ConsumePasswordReset(_ context.Context, hash string, now time.Time, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if live(u.PasswordResetTokenHash, u.PasswordResetExpiry, hash, now) {
			u.PasswordHash = passwordHash
			u.RefreshToken = nil
			u.PasswordResetTokenHash = nil
			u.PasswordResetExpiry = nil
			u.UpdatedAt = now
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) PurgeExpiredSingleUseTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		touched := false
		if u.EmailVerificationExpiry != nil && !u.EmailVerificationExpiry.After(now) {
			u.EmailVerificationTokenHash = nil
			u.EmailVerificationExpiry = nil
			touched = true
		}
		if u.PasswordResetExpiry != nil && !u.PasswordResetExpiry.After(now) {
			u.PasswordResetTokenHash = nil
			u.PasswordResetExpiry = nil
			touched = true
		}
		if touched {
			n++
		}
	}
	return n, nil
}

// Snapshot returns a copy of the stored user, for joins by sibling
// in-memory repositories.
func (r *MemoryRepository) Snapshot(id string) (*models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, false
	}
	return clone(u), true
}

func live(storedHash *string, expiry *time.Time, hash string, now time.Time) bool {
	return storedHash != nil && expiry != nil && *storedHash == hash && expiry.After(now)
}

func (r *MemoryRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}
