// Package singleuse mints and checks the random, hashed, time-boxed tokens
// used for email verification and password reset.
package singleuse

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
)

// tokenBytes is the entropy of a plain token: 160 bits.
const tokenBytes = 20

// Purpose selects the field family a token is stored in. Tokens minted for
// one purpose are never accepted for the other.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Token is a freshly minted single-use token. Plain is handed out once and
// never persisted; Hash and Expiry are what gets stored.
type Token struct {
	Plain  string
	Hash   string
	Expiry time.Time
}

// Generator mints tokens with a fixed validity window.
type Generator struct {
	ttl   time.Duration
	clock clock.Clock
}

func NewGenerator(ttl time.Duration, c clock.Clock) *Generator {
	return &Generator{ttl: ttl, clock: c}
}

// Generate returns a new random token with its hash and expiry.
func (g *Generator) Generate() (*Token, error) {
	plain, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, err
	}
	return &Token{
		Plain:  plain,
		Hash:   Hash(plain),
		Expiry: g.clock.Now().Add(g.ttl),
	}, nil
}

// Hash is the one-way digest stored for a plain token.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
