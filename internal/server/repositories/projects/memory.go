package projects

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
	"github.com/google/uuid"
)

// MembershipSource lets the in-memory project store answer ListForUser
// without owning membership state.
type MembershipSource interface {
	RolesForUser(userID string) map[string]models.Role
	CountMembers(projectID string) int
	DropProject(projectID string)
}

type MemoryRepository struct {
	mu       sync.Mutex
	projects map[string]models.Project
	members  MembershipSource
}

func NewMemoryRepository(members MembershipSource) *MemoryRepository {
	return &MemoryRepository{projects: make(map[string]models.Project), members: members}
}

func (r *MemoryRepository) Create(_ context.Context, p *models.Project) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.projects[p.ID] = *p
	return p, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListForUser(_ context.Context, userID string) ([]models.ProjectSummary, error) {
	roles := r.members.RolesForUser(userID)

	r.mu.Lock()
	res := make([]models.ProjectSummary, 0, len(roles))
	for id, role := range roles {
		p, ok := r.projects[id]
		if !ok {
			continue
		}
		res = append(res, models.ProjectSummary{Project: p, Role: role})
	}
	r.mu.Unlock()

	for i := range res {
		res[i].Members = r.members.CountMembers(res[i].ID)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepository) Update(_ context.Context, id, name, description string) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	p.Name = name
	p.Description = description
	p.UpdatedAt = time.Now().UTC()
	r.projects[id] = p
	return &p, nil
}

// Delete removes the project and its memberships, mirroring ON DELETE CASCADE.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.projects[id]
	delete(r.projects, id)
	r.mu.Unlock()

	if !ok {
		return common.ErrNotFound
	}
	r.members.DropProject(id)
	return nil
}
