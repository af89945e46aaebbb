package models

import "time"

// User is the persisted account. Token hash fields hold SHA-256 digests of
// single-use tokens; the plaintext is never stored.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	IsEmailVerified bool

	// RefreshToken is the single active refresh token, nil after logout.
	RefreshToken *string

	EmailVerificationTokenHash *string
	EmailVerificationExpiry    *time.Time
	PasswordResetTokenHash     *string
	PasswordResetExpiry        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	pendingPassword *string
}

// SetPassword records a plaintext password to be hashed before the next
// save. Nothing is hashed on saves where SetPassword was not called.
func (u *User) SetPassword(plain string) {
	u.pendingPassword = &plain
}

// PasswordChanged reports whether a plaintext password is waiting to be hashed.
func (u *User) PasswordChanged() bool {
	return u.pendingPassword != nil
}

// PendingPassword returns the pending plaintext and forgets it.
func (u *User) PendingPassword() (string, bool) {
	if u.pendingPassword == nil {
		return "", false
	}
	p := *u.pendingPassword
	u.pendingPassword = nil
	return p, true
}

// PublicUser is the projection of User safe to return to clients.
type PublicUser struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// Principal is the identity carried by a verified access token.
type Principal struct {
	UserID   string
	Email    string
	Username string
}
