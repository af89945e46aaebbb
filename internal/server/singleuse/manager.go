package singleuse

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/users"
)

// Recorder observes token lifecycle events. Implemented by metrics.
type Recorder interface {
	SingleUseToken(purpose, event string)
}

// Manager issues tokens into a user's field pair and consumes them.
type Manager struct {
	gen      *Generator
	clock    clock.Clock
	logger   logging.Logger
	recorder Recorder
}

func NewManager(gen *Generator, c clock.Clock, l logging.Logger, r Recorder) *Manager {
	return &Manager{gen: gen, clock: c, logger: l.With("module", "singleuse"), recorder: r}
}

// Issue mints a token for purpose and stores its hash and expiry on the
// user, replacing any previous token of the same purpose. The returned
// plain token is the only copy.
func (m *Manager) Issue(ctx context.Context, repo users.Repository, userID string, purpose Purpose) (string, error) {
	tok, err := m.gen.Generate()
	if err != nil {
		m.logger.Error(ctx, "token generation failed", "error", err)
		return "", common.ErrInternal
	}
	if err := repo.SetSingleUseToken(ctx, userID, string(purpose), tok.Hash, tok.Expiry); err != nil {
		m.logger.Error(ctx, "token persistence failed", "purpose", purpose, "error", err)
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrNotFound
		}
		return "", common.ErrInternal
	}
	m.record(string(purpose), "issued")
	return tok.Plain, nil
}

// ConsumeVerification accepts an email verification token, clearing it and
// marking the owner verified in one write.
func (m *Manager) ConsumeVerification(ctx context.Context, repo users.Repository, plain string) (*models.User, error) {
	return m.consume(ctx, PurposeEmailVerification, plain, func(hash string) (*models.User, error) {
		return repo.ConsumeEmailVerification(ctx, hash, m.clock.Now())
	})
}

// ConsumeReset accepts a password reset token, clearing it and storing
// newHash in one write.
func (m *Manager) ConsumeReset(ctx context.Context, repo users.Repository, plain, newHash string) (*models.User, error) {
	return m.consume(ctx, PurposePasswordReset, plain, func(hash string) (*models.User, error) {
		return repo.ConsumePasswordReset(ctx, hash, m.clock.Now(), newHash)
	})
}

// consume hashes plain and runs apply. Unknown, already used and expired
// tokens all come back as common.ErrTokenInvalidOrExpired.
func (m *Manager) consume(ctx context.Context, purpose Purpose, plain string, apply func(hash string) (*models.User, error)) (*models.User, error) {
	if plain == "" {
		m.record(string(purpose), "rejected")
		return nil, common.ErrTokenInvalidOrExpired
	}

	u, err := apply(Hash(plain))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			m.record(string(purpose), "rejected")
			return nil, common.ErrTokenInvalidOrExpired
		}
		m.logger.Error(ctx, "token consumption failed", "purpose", purpose, "error", err)
		return nil, common.ErrInternal
	}

	m.record(string(purpose), "consumed")
	return u, nil
}

func (m *Manager) record(purpose, event string) {
	if m.recorder != nil {
		m.recorder.SingleUseToken(purpose, event)
	}
}
