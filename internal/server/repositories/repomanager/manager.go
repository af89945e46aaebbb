package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/taskcamp/internal/dbx"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// use the same code path inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Projects(db dbx.DBTX) projects.Repository
	Memberships(db dbx.DBTX) memberships.Repository
}

// MemoryDSN selects the in-process repositories instead of PostgreSQL.
// Nothing survives a restart.
const MemoryDSN = "memory"

// Connect opens the database named by dsn and returns the matching manager.
// For MemoryDSN the handle is an empty in-memory SQLite database that only
// scopes dbx.WithTx; the repositories ignore it.
func Connect(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	if dsn == MemoryDSN {
		db, err := OpenMemory(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("memory db: %w", err)
		}
		return db, NewMemoryRepositoryManager(), nil
	}

	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, NewPostgresRepositoryManager(), nil
}
