// Package repomanager vends repository implementations bound to a database
// handle and runs transactions and migrations for them.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error

	// Conn is the non-transactional handle to pass to the factories.
	Conn() dbx.DBTX
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository

	// WithTx runs fn inside a transaction. Repositories built from the tx
	// handle see and commit their writes together; an error rolls back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	Close() error
}
