// Package repomanager vends repositories bound to a connection or a
// transaction, and owns the transaction boundary.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// TxFunc runs inside a transaction. tx must only be used to build
// repositories via Users and RefreshTokens.
type TxFunc func(ctx context.Context, tx dbx.DBTX) error

type RepositoryManager interface {
	// Conn returns a non-transactional handle for reads.
	Conn() dbx.DBTX
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn TxFunc) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}
