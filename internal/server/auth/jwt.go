// Package auth issues and verifies the signed access and refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "taskcamp"

	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

// AccessClaims identify the caller for one short request window.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RefreshClaims carry only the subject.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenIssuer signs access and refresh tokens with independent HS256 secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         clock.Clock
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, c clock.Clock) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		clock:         c,
	}
}

// IssueAccess mints an access token embedding {sub, email, username}.
func (i *TokenIssuer) IssueAccess(u *models.User) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: i.registered(u.ID, audienceAccess, i.accessTTL),
		Email:            u.Email,
		Username:         u.Username,
	}
	return sign(claims, i.accessSecret)
}

// IssueRefresh mints a refresh token embedding only {sub}.
func (i *TokenIssuer) IssueRefresh(u *models.User) (string, error) {
	claims := RefreshClaims{RegisteredClaims: i.registered(u.ID, audienceRefresh, i.refreshTTL)}
	return sign(claims, i.refreshSecret)
}

// IssuePair mints a fresh access and refresh token for u.
func (i *TokenIssuer) IssuePair(u *models.User) (*TokenPair, error) {
	access, err := i.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefresh(u)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess checks an access token and returns the caller's Principal.
func (i *TokenIssuer) VerifyAccess(token string) (*models.Principal, error) {
	claims := &AccessClaims{}
	if err := i.Verify(token, i.accessSecret, audienceAccess, claims); err != nil {
		return nil, err
	}
	return &models.Principal{UserID: claims.Subject, Email: claims.Email, Username: claims.Username}, nil
}

// VerifyRefresh checks a refresh token and returns its subject.
func (i *TokenIssuer) VerifyRefresh(token string) (string, error) {
	claims := &RefreshClaims{}
	if err := i.Verify(token, i.refreshSecret, audienceRefresh, claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Verify parses token with the expected secret and audience into claims.
// It returns common.ErrTokenExpired for a correctly signed token past its
// expiry and common.ErrTokenInvalid for everything else.
func (i *TokenIssuer) Verify(token string, secret []byte, audience string, claims jwt.Claims) error {
	if token == "" {
		return common.ErrTokenMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)

	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return common.ErrTokenInvalid
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return common.ErrTokenInvalid
	}
	return nil
}

func (i *TokenIssuer) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.clock.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
