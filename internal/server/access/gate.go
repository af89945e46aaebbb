// Package access decides whether an authenticated caller may act on a
// project, based on their membership role.
package access

import (
	"context"
	"errors"
	"slices"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/memberships"
)

// Denial reasons reported to the Recorder.
const (
	ReasonNotAMember   = "not_a_member"
	ReasonInsufficient = "insufficient_permission"
)

// Recorder observes denied authorization checks. Implemented by metrics.
type Recorder interface {
	AuthorizationDenied(reason string)
}

// Gate checks project membership against a route's allowed roles. It never
// writes membership state.
type Gate struct {
	logger   logging.Logger
	recorder Recorder
}

func NewGate(l logging.Logger, r Recorder) *Gate {
	return &Gate{logger: l.With("module", "access"), recorder: r}
}

// Authorize resolves the principal's role in projectID and checks it
// against allowed. On success the returned context carries the Grant; a
// Grant already present for the same user and project is reused without a
// lookup.
func (g *Gate) Authorize(ctx context.Context, repo memberships.Repository, p *models.Principal, projectID string, allowed ...models.Role) (context.Context, error) {
	if p == nil {
		return ctx, common.ErrTokenMissing
	}

	role, err := g.resolve(ctx, repo, p.UserID, projectID)
	if err != nil {
		return ctx, err
	}

	if !slices.Contains(allowed, role) {
		g.deny(ctx, ReasonInsufficient, p.UserID, projectID)
		return ctx, common.ErrInsufficientPermission
	}

	return WithGrant(ctx, Grant{UserID: p.UserID, ProjectID: projectID, Role: role}), nil
}

func (g *Gate) resolve(ctx context.Context, repo memberships.Repository, userID, projectID string) (models.Role, error) {
	if grant, ok := GrantFromContext(ctx); ok && grant.UserID == userID && grant.ProjectID == projectID {
		return grant.Role, nil
	}

	m, err := repo.Get(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			g.deny(ctx, ReasonNotAMember, userID, projectID)
			return "", common.ErrNotAMember
		}
		g.logger.Error(ctx, "membership lookup failed", "project_id", projectID, "error", err)
		return "", common.ErrInternal
	}
	if !m.Role.IsValid() {
		g.logger.Error(ctx, "membership has unknown role", "project_id", projectID, "role", m.Role)
		return "", common.ErrInternal
	}
	return m.Role, nil
}

func (g *Gate) deny(ctx context.Context, reason, userID, projectID string) {
	g.logger.Info(ctx, "authorization denied", "reason", reason, "user_id", userID, "project_id", projectID)
	if g.recorder != nil {
		g.recorder.AuthorizationDenied(reason)
	}
}
