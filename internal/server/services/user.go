// Package services contains server-side business logic. This file implements
// UserService, which owns registration, login, refresh rotation, email
// verification and the password flows.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"github.com/dmitrijs2005/taskcamp/internal/server/credentials"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/notify"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskcamp/internal/server/sessions"
	"github.com/dmitrijs2005/taskcamp/internal/server/singleuse"
)

// Login outcomes reported to the LoginRecorder.
const (
	LoginOK     = "ok"
	LoginFailed = "failed"
	LoginError  = "error"
)

// LoginRecorder observes login attempts. Implemented by metrics.
type LoginRecorder interface {
	Login(result string)
}

// UserDeps are the collaborators of UserService.
type UserDeps struct {
	Credentials *credentials.Store
	Sessions    *sessions.Rotator
	Tokens      *singleuse.Manager
	Notifier    notify.Notifier
	Links       notify.Links
	Logger      logging.Logger
	Recorder    LoginRecorder
}

// UserService provides the account and session flows. Every method returns
// errors from the common taxonomy only.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	creds       *credentials.Store
	sessions    *sessions.Rotator
	tokens      *singleuse.Manager
	notifier    notify.Notifier
	links       notify.Links
	logger      logging.Logger
	recorder    LoginRecorder
}

// NewUserService constructs a UserService over the given repositories.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, d UserDeps) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		creds:       d.Credentials,
		sessions:    d.Sessions,
		tokens:      d.Tokens,
		notifier:    d.Notifier,
		links:       d.Links,
		logger:      d.Logger.With("module", "users"),
		recorder:    d.Recorder,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates an account and sends its first verification link. The
// user row and the verification token are written in one transaction;
// delivery happens after commit and its failure is only logged.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	user := &models.User{
		Username: normalize(username),
		Email:    normalize(email),
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByEmailOrUsername(ctx, user.Email, user.Username); err == nil {
		return nil, common.ErrDuplicateUser
	} else if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "duplicate check failed", "error", err)
		return nil, common.ErrInternal
	}

	user.SetPassword(password)
	if _, err := s.creds.Apply(user); err != nil {
		if errors.Is(err, credentials.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrInternal
	}

	var plain string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repomanager.Users(tx)

		created, err := txRepo.Create(ctx, user)
		if err != nil {
			return dbx.Classify(err)
		}
		user = created

		plain, err = s.tokens.Issue(ctx, txRepo, user.ID, singleuse.PurposeEmailVerification)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUser) {
			return nil, common.ErrDuplicateUser
		}
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	notify.Deliver(ctx, s.notifier, s.logger, notify.Message{
		Kind:     notify.KindEmailVerification,
		To:       user.Email,
		Username: user.Username,
		Link:     s.links.VerifyEmail(plain),
	})
	return user, nil
}

// Login authenticates by email or username and starts a new refresh
// session. Unknown accounts and wrong passwords are indistinguishable,
// both in the returned error and in the time spent.
func (s *UserService) Login(ctx context.Context, emailOrUsername, password string) (*models.User, *auth.TokenPair, error) {
	id := normalize(emailOrUsername)
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmailOrUsername(ctx, id, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.creds.VerifyAbsent(password)
			s.recordLogin(LoginFailed)
			return nil, nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		s.recordLogin(LoginError)
		return nil, nil, common.ErrInternal
	}

	if err := s.creds.Check(user, password); err != nil {
		s.recordLogin(LoginFailed)
		return nil, nil, err
	}

	pair, err := s.sessions.Start(ctx, repo, user)
	if err != nil {
		s.recordLogin(LoginError)
		return nil, nil, err
	}

	s.recordLogin(LoginOK)
	return user, pair, nil
}

// Logout ends the user's refresh session.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	return s.sessions.Revoke(ctx, s.repomanager.Users(s.db), userID)
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return user, nil
}

// VerifyEmail consumes a verification token and returns the now verified user.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	return s.tokens.ConsumeVerification(ctx, s.repomanager.Users(s.db), token)
}

// ResendEmailVerification replaces the user's verification token with a
// fresh one and sends it again.
func (s *UserService) ResendEmailVerification(ctx context.Context, userID string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return dbx.Classify(err)
	}
	if user.IsEmailVerified {
		return common.ErrAlreadyVerified
	}

	plain, err := s.tokens.Issue(ctx, repo, user.ID, singleuse.PurposeEmailVerification)
	if err != nil {
		return err
	}

	notify.Deliver(ctx, s.notifier, s.logger, notify.Message{
		Kind:     notify.KindEmailVerification,
		To:       user.Email,
		Username: user.Username,
		Link:     s.links.VerifyEmail(plain),
	})
	return nil
}

// ForgotPassword sends a reset link if an account with email exists. It
// succeeds either way.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalize(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return common.ErrInternal
	}

	plain, err := s.tokens.Issue(ctx, repo, user.ID, singleuse.PurposePasswordReset)
	if err != nil {
		return err
	}

	notify.Deliver(ctx, s.notifier, s.logger, notify.Message{
		Kind:     notify.KindPasswordReset,
		To:       user.Email,
		Username: user.Username,
		Link:     s.links.ResetPassword(plain),
	})
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The
// refresh session is dropped in the same write.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		if errors.Is(err, credentials.ErrEmptyPassword) {
			return fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		return common.ErrInternal
	}

	user, err := s.tokens.ConsumeReset(ctx, s.repomanager.Users(s.db), token, hash)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// ChangePassword replaces the password of a logged-in user after checking
// the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return dbx.Classify(err)
	}
	if err := s.creds.Check(user, oldPassword); err != nil {
		return err
	}

	user.SetPassword(newPassword)
	if _, err := s.creds.Apply(user); err != nil {
		if errors.Is(err, credentials.ErrEmptyPassword) {
			return fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		return common.ErrInternal
	}

	if err := repo.UpdatePassword(ctx, user.ID, user.PasswordHash); err != nil {
		s.logger.Error(ctx, "password update failed", "user_id", user.ID, "error", err)
		return dbx.Classify(err)
	}
	return nil
}

// RefreshToken rotates the presented refresh token into a new pair.
func (s *UserService) RefreshToken(ctx context.Context, presented string) (*models.User, *auth.TokenPair, error) {
	if presented == "" {
		return nil, nil, common.ErrTokenMissing
	}
	return s.sessions.Rotate(ctx, s.repomanager.Users(s.db), presented)
}

func (s *UserService) recordLogin(result string) {
	if s.recorder != nil {
		s.recorder.Login(result)
	}
}
