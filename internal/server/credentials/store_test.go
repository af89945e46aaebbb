package credentials

import (
	"testing"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(bcrypt.MinCost)
	require.NoError(t, err)
	return s
}

func TestNewStore_RejectsBadCost(t *testing.T) {
	_, err := NewStore(1)
	require.Error(t, err)
	_, err = NewStore(bcrypt.MaxCost + 1)
	require.Error(t, err)
}

func TestHashVerify_RoundTrip(t *testing.T) {
	s := newStore(t)

	for _, p := range []string{"hunter2", "correct horse battery staple", "ünïcødé"} {
		h, err := s.Hash(p)
		require.NoError(t, err)
		assert.NotEqual(t, p, h, "hash must never equal plaintext")
		assert.True(t, IsHash(h))
		assert.True(t, s.Verify(p, h))
		assert.False(t, s.Verify(p+"x", h))
	}
}

func TestHash_UsesConfiguredCost(t *testing.T) {
	s, err := NewStore(bcrypt.MinCost + 1)
	require.NoError(t, err)

	h, err := s.Hash("pw")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestHash_Empty(t *testing.T) {
	_, err := newStore(t).Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_MalformedHash(t *testing.T) {
	assert.False(t, newStore(t).Verify("pw", "not-a-hash"))
}

func TestApply_HashesOnlyWhenChanged(t *testing.T) {
	s := newStore(t)

	u := &models.User{}
	u.SetPassword("first")
	changed, err := s.Apply(u)
	require.NoError(t, err)
	require.True(t, changed)
	first := u.PasswordHash

	// a second save without SetPassword keeps the hash as is
	changed, err = s.Apply(u)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, u.PasswordHash)
	assert.True(t, s.Verify("first", u.PasswordHash))

	u.SetPassword("second")
	changed, err = s.Apply(u)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, s.Verify("second", u.PasswordHash))
	assert.False(t, s.Verify("first", u.PasswordHash))
}

func TestCheck(t *testing.T) {
	s := newStore(t)
	h, err := s.Hash("pw")
	require.NoError(t, err)
	u := &models.User{PasswordHash: h}

	require.NoError(t, s.Check(u, "pw"))
	require.ErrorIs(t, s.Check(u, "nope"), common.ErrInvalidCredentials)
}

func TestVerifyAbsent_DoesNotPanic(t *testing.T) {
	newStore(t).VerifyAbsent("whatever")
}
