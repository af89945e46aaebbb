package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

// MemoryRepositoryManager hands out the same in-memory repositories
// regardless of the DBTX passed in. Writes inside dbx.WithTx are not rolled
// back; it exists for tests and local runs (see MemoryDSN).
type MemoryRepositoryManager struct {
	users       *users.MemoryRepository
	projects    *projects.MemoryRepository
	memberships *memberships.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	u := users.NewMemoryRepository()
	m := memberships.NewMemoryRepository(u)
	return &MemoryRepositoryManager{
		users:       u,
		memberships: m,
		projects:    projects.NewMemoryRepository(m),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) Projects(dbx.DBTX) projects.Repository { return m.projects }

func (m *MemoryRepositoryManager) Memberships(dbx.DBTX) memberships.Repository {
	return m.memberships
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
