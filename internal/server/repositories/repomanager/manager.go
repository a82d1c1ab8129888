package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/shopkeeper/internal/dbx"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/otpcodes"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	OTPCodes(db dbx.DBTX) otpcodes.Store
}
