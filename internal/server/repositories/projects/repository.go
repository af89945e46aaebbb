// Package projects persists projects.
package projects

import (
	"context"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	// ListForUser returns the projects userID belongs to, with the caller's
	// role and the member count.
	ListForUser(ctx context.Context, userID string) ([]models.ProjectSummary, error)
	// Update overwrites name and description and returns the stored row.
	Update(ctx context.Context, id, name, description string) (*models.Project, error)
	Delete(ctx context.Context, id string) error
}
