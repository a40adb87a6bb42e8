package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmanankin/authvault/internal/dbx"
	"github.com/dmanankin/authvault/internal/server/repositories/refreshtokens"
	"github.com/dmanankin/authvault/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations and exposes a schema
// migration hook. Users bind to a DBTX (plain reads); the refresh-token
// store binds to the full *sql.DB because rotation opens its own
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db *sql.DB) refreshtokens.Store
}
