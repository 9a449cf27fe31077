package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/requests"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Requests(db dbx.DBTX) requests.Repository
}
