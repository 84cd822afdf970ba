package repomanager

import (
	"context"
	"database/sql"

	"github.com/moviemate/authkeeper/internal/dbx"
	"github.com/moviemate/authkeeper/internal/server/repositories/refreshrecords"
	"github.com/moviemate/authkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshRecords(db dbx.DBTX) refreshrecords.Repository
}
