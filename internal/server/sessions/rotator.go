// Package sessions owns the refresh session of a user: starting it at
// login, rotating it on refresh, and revoking it at logout.
package sessions

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/users"
)

// Refresh outcomes reported to the Recorder.
const (
	ResultOK      = "ok"
	ResultStale   = "stale"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Recorder observes refresh outcomes. Implemented by metrics.
type Recorder interface {
	Refresh(result string)
}

// Rotator issues token pairs and keeps users.refresh_token equal to the
// last refresh token handed out.
type Rotator struct {
	issuer   *auth.TokenIssuer
	logger   logging.Logger
	recorder Recorder
}

func NewRotator(issuer *auth.TokenIssuer, l logging.Logger, r Recorder) *Rotator {
	return &Rotator{issuer: issuer, logger: l.With("module", "sessions"), recorder: r}
}

// Start issues a pair for u and stores the refresh token as the active one,
// superseding any earlier session.
func (s *Rotator) Start(ctx context.Context, repo users.Repository, u *models.User) (*auth.TokenPair, error) {
	pair, err := s.issuer.IssuePair(u)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrInternal
	}
	if err := repo.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		s.logger.Error(ctx, "refresh token persistence failed", "user_id", u.ID, "error", err)
		return nil, dbx.Classify(err)
	}
	return pair, nil
}

// Revoke clears the active refresh token.
func (s *Rotator) Revoke(ctx context.Context, repo users.Repository, userID string) error {
	if err := repo.ClearRefreshToken(ctx, userID); err != nil {
		return dbx.Classify(err)
	}
	return nil
}

// Rotate exchanges a presented refresh token for a new pair.
//
// The presented token must verify, name an existing user, and equal that
// user's stored refresh token; the replacement is a compare-and-swap on the
// stored value. A mismatch, either up front or at the swap, is
// common.ErrRefreshTokenStale and issues nothing.
func (s *Rotator) Rotate(ctx context.Context, repo users.Repository, presented string) (*models.User, *auth.TokenPair, error) {
	userID, err := s.issuer.VerifyRefresh(presented)
	if err != nil {
		s.record(ResultInvalid)
		return nil, nil, err
	}

	u, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.record(ResultInvalid)
			return nil, nil, common.ErrTokenInvalid
		}
		s.logger.Error(ctx, "user lookup failed", "user_id", userID, "error", err)
		s.record(ResultError)
		return nil, nil, common.ErrInternal
	}

	if u.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*u.RefreshToken), []byte(presented)) != 1 {
		s.logger.Warn(ctx, "superseded refresh token presented", "user_id", u.ID)
		s.record(ResultStale)
		return nil, nil, common.ErrRefreshTokenStale
	}

	pair, err := s.issuer.IssuePair(u)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		s.record(ResultError)
		return nil, nil, common.ErrInternal
	}

	swapped, err := repo.CompareAndSwapRefreshToken(ctx, u.ID, presented, pair.RefreshToken)
	if err != nil {
		s.logger.Error(ctx, "refresh token swap failed", "user_id", u.ID, "error", err)
		s.record(ResultError)
		return nil, nil, common.ErrInternal
	}
	if !swapped {
		s.logger.Warn(ctx, "refresh token rotated concurrently", "user_id", u.ID)
		s.record(ResultStale)
		return nil, nil, common.ErrRefreshTokenStale
	}

	s.record(ResultOK)
	return u, pair, nil
}

func (s *Rotator) record(result string) {
	if s.recorder != nil {
		s.recorder.Refresh(result)
	}
}
