// Package credentials hashes and verifies account passwords with bcrypt.
package credentials

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty string.
var ErrEmptyPassword = errors.New("password must not be empty")

// Store hashes passwords at a fixed bcrypt cost.
type Store struct {
	cost      int
	dummyHash []byte
}

// NewStore returns a Store using the given bcrypt work factor.
func NewStore(cost int) (*Store, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword(common.GenerateRandByteArray(32), cost)
	if err != nil {
		return nil, err
	}
	return &Store{cost: cost, dummyHash: dummy}, nil
}

func (s *Store) Cost() int { return s.cost }

// Hash returns the bcrypt hash of plaintext.
func (s *Store) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plaintext matches hashed. A malformed hash is a
// mismatch, never a panic.
func (s *Store) Verify(plaintext, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// VerifyAbsent spends the same work as Verify against a throwaway hash. It
// is called when the account does not exist so response timing does not
// reveal that.
func (s *Store) VerifyAbsent(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plaintext))
}

// Apply hashes the user's pending password, if any, into PasswordHash.
// It reports whether a new hash was written. Users without a pending
// password are left alone, so an existing hash is never hashed twice.
func (s *Store) Apply(u *models.User) (bool, error) {
	plain, ok := u.PendingPassword()
	if !ok {
		return false, nil
	}
	h, err := s.Hash(plain)
	if err != nil {
		return false, err
	}
	u.PasswordHash = h
	return true, nil
}

// Check verifies plaintext against the user's hash and returns
// common.ErrInvalidCredentials on mismatch.
func (s *Store) Check(u *models.User, plaintext string) error {
	if !s.Verify(plaintext, u.PasswordHash) {
		return common.ErrInvalidCredentials
	}
	return nil
}

// IsHash reports whether v parses as a bcrypt hash.
func IsHash(v string) bool {
	_, err := bcrypt.Cost([]byte(v))
	return err == nil
}
