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
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/repomanager"
)

// ProjectService manages projects and their memberships. Callers are
// expected to have passed access.Gate for the project already.
type ProjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewProjectService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *ProjectService {
	return &ProjectService{db: db, repomanager: m, logger: l.With("module", "projects")}
}

// CreateProject creates a project owned by p, who becomes its admin in the
// same transaction.
func (s *ProjectService) CreateProject(ctx context.Context, p *models.Principal, name, description string) (*models.Project, error) {
	if p == nil {
		return nil, common.ErrTokenMissing
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", common.ErrValidation)
	}

	project := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   p.UserID,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Projects(tx).Create(ctx, project)
		if err != nil {
			return err
		}
		project = created

		_, err = s.repomanager.Memberships(tx).Add(ctx, &models.ProjectMembership{
			UserID:    p.UserID,
			ProjectID: project.ID,
			Role:      models.RoleAdmin,
		})
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "project creation failed", "error", err)
		return nil, common.ErrInternal
	}

	s.logger.Info(ctx, "project created", "project_id", project.ID, "user_id", p.UserID)
	return project, nil
}

func (s *ProjectService) ListProjects(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	list, err := s.repomanager.Projects(s.db).ListForUser(ctx, userID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return list, nil
}

func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	p, err := s.repomanager.Projects(s.db).GetByID(ctx, projectID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return p, nil
}

// UpdateProject renames the project and replaces its description.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", common.ErrValidation)
	}

	p, err := s.repomanager.Projects(s.db).Update(ctx, projectID, name, strings.TrimSpace(description))
	if err != nil {
		return nil, dbx.Classify(err)
	}
	s.logger.Info(ctx, "project updated", "project_id", projectID)
	return p, nil
}

// DeleteProject removes the project; memberships go with it.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.repomanager.Projects(s.db).Delete(ctx, projectID); err != nil {
		return dbx.Classify(err)
	}
	s.logger.Info(ctx, "project deleted", "project_id", projectID)
	return nil
}

// AddMember adds the user registered under email to the project.
func (s *ProjectService) AddMember(ctx context.Context, projectID, email string, role models.Role) (*models.ProjectMembership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", common.ErrValidation, role)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalize(email))
	if err != nil {
		return nil, dbx.Classify(err)
	}

	m, err := s.repomanager.Memberships(s.db).Add(ctx, &models.ProjectMembership{
		UserID:    user.ID,
		ProjectID: projectID,
		Role:      role,
	})
	if err != nil {
		if errors.Is(dbx.Classify(err), common.ErrDuplicateUser) {
			return nil, common.ErrDuplicateUser
		}
		s.logger.Error(ctx, "member add failed", "project_id", projectID, "error", err)
		return nil, common.ErrInternal
	}
	return m, nil
}

func (s *ProjectService) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	list, err := s.repomanager.Memberships(s.db).ListByProject(ctx, projectID)
	if err != nil {
		return nil, dbx.Classify(err)
	}
	return list, nil
}

func (s *ProjectService) UpdateMemberRole(ctx context.Context, projectID, userID string, role models.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: invalid role %q", common.ErrValidation, role)
	}
	if err := s.repomanager.Memberships(s.db).UpdateRole(ctx, userID, projectID, role); err != nil {
		return dbx.Classify(err)
	}
	return nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := s.repomanager.Memberships(s.db).Remove(ctx, userID, projectID); err != nil {
		return dbx.Classify(err)
	}
	return nil
}
