// Package memberships persists the (user, project, role) relation.
package memberships

import (
	"context"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

// Repository stores project memberships. There is at most one membership
// per (user, project); Add reports a second one as common.ErrDuplicateUser.
type Repository interface {
	Add(ctx context.Context, m *models.ProjectMembership) (*models.ProjectMembership, error)
	Get(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error)
	UpdateRole(ctx context.Context, userID, projectID string, role models.Role) error
	Remove(ctx context.Context, userID, projectID string) error
	ListByProject(ctx context.Context, projectID string) ([]models.ProjectMember, error)
}
