package repomanager

import (
	"context"
	"database/sql"

	"github.com/workdeck/workdeck/internal/dbx"
	"github.com/workdeck/workdeck/internal/server/repositories/groups"
	"github.com/workdeck/workdeck/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a session handle (either
// a *sql.DB or a running transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Groups(db dbx.DBTX) groups.Repository
}
