package memberships

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, m *models.ProjectMembership) (*models.ProjectMembership, error) {
	query :=
		`INSERT INTO project_members (user_id, project_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, m.UserID, m.ProjectID, string(m.Role)).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("db error: %w", common.ErrDuplicateUser)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, projectID string) (*models.ProjectMembership, error) {
	query :=
		`SELECT user_id, project_id, role, created_at, updated_at
		 FROM project_members WHERE user_id = $1 AND project_id = $2`

	m := &models.ProjectMembership{}
	err := r.db.QueryRowContext(ctx, query, userID, projectID).
		Scan(&m.UserID, &m.ProjectID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if dbx.IsNoRows(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, userID, projectID string, role models.Role) error {
	query :=
		`UPDATE project_members SET role = $3, updated_at = now()
		 WHERE user_id = $1 AND project_id = $2`
	return r.execOne(ctx, query, userID, projectID, string(role))
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, projectID string) error {
	query := `DELETE FROM project_members WHERE user_id = $1 AND project_id = $2`
	return r.execOne(ctx, query, userID, projectID)
}

func (r *PostgresRepository) ListByProject(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	query :=
		`SELECT u.id, u.username, u.email, m.role, m.created_at
		 FROM project_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = $1
		 ORDER BY m.created_at`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	res := make([]models.ProjectMember, 0)
	for rows.Next() {
		var pm models.ProjectMember
		if err := rows.Scan(&pm.UserID, &pm.Username, &pm.Email, &pm.Role, &pm.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsInvalidText(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
