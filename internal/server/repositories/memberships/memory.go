package memberships

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

// UserSource resolves member identities for ListByProject.
type UserSource interface {
	Snapshot(id string) (*models.User, bool)
}

type key struct {
	userID    string
	projectID string
}

type MemoryRepository struct {
	mu    sync.Mutex
	rows  map[key]models.ProjectMembership
	users UserSource
}

func NewMemoryRepository(users UserSource) *MemoryRepository {
	return &MemoryRepository{rows: make(map[key]models.ProjectMembership), users: users}
}

func (r *MemoryRepository) Add(_ context.Context, m *models.ProjectMembership) (*models.ProjectMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{m.UserID, m.ProjectID}
	if _, ok := r.rows[k]; ok {
		return nil, fmt.Errorf("db error: %w", common.ErrDuplicateUser)
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.rows[k] = *m
	return m, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rows[key{userID, projectID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &m, nil
}

func (r *MemoryRepository) UpdateRole(_ context.Context, userID, projectID string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{userID, projectID}
	m, ok := r.rows[k]
	if !ok {
		return common.ErrNotFound
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	r.rows[k] = m
	return nil
}

func (r *MemoryRepository) Remove(_ context.Context, userID, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{userID, projectID}
	if _, ok := r.rows[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, k)
	return nil
}

func (r *MemoryRepository) ListByProject(_ context.Context, projectID string) ([]models.ProjectMember, error) {
	r.mu.Lock()
	rows := make([]models.ProjectMembership, 0)
	for k, m := range r.rows {
		if k.projectID == projectID {
			rows = append(rows, m)
		}
	}
	r.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })

	res := make([]models.ProjectMember, 0, len(rows))
	for _, m := range rows {
		u, ok := r.users.Snapshot(m.UserID)
		if !ok {
			continue
		}
		res = append(res, models.ProjectMember{UserID: u.ID, Username: u.Username, Email: u.Email, Role: m.Role, CreatedAt: m.CreatedAt})
	}
	return res, nil
}

// RolesForUser maps project id to role for every membership of userID.
func (r *MemoryRepository) RolesForUser(userID string) map[string]models.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make(map[string]models.Role)
	for k, m := range r.rows {
		if k.userID == userID {
			res[k.projectID] = m.Role
		}
	}
	return res
}

func (r *MemoryRepository) CountMembers(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k := range r.rows {
		if k.projectID == projectID {
			n++
		}
	}
	return n
}

// DropProject removes every membership of projectID.
func (r *MemoryRepository) DropProject(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.rows {
		if k.projectID == projectID {
			delete(r.rows, k)
		}
	}
}
