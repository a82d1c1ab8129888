// Package server wires the reference backend together: database, one-time
// code store, services and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/shopkeeper/internal/logging"
	"github.com/dmitrijs2005/shopkeeper/internal/server/config"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/otpcodes"
	"github.com/dmitrijs2005/shopkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/shopkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/shopkeeper/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	closers    []io.Closer
	identities *services.IdentityService
	profiles   *services.ProfileService
	seeder     *services.Seeder
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// newRedisClient is a seam for tests.
var newRedisClient = func(ctx context.Context, addr, password string) (io.Closer, otpcodes.Store, error) {
	client, err := otpcodes.NewRedisClient(ctx, addr, password)
	if err != nil {
		return nil, nil, err
	}
	return client, otpcodes.NewRedisStore(client), nil
}

func NewApp(ctx context.Context, c *config.Config, l logging.Logger) (*App, error) {
	return newApp(ctx, c, l, repomanager.NewPostgresRepositoryManager())
}

func newApp(ctx context.Context, c *config.Config, l logging.Logger, rm repomanager.RepositoryManager) (*App, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: l, db: db, closers: []io.Closer{db}}

	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var otp otpcodes.Store
	switch c.OTPStore {
	case config.OTPStorePostgres, "":
		otp = rm.OTPCodes(db)
	case config.OTPStoreRedis:
		closer, store, err := newRedisClient(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("otp store: %w", err)
		}
		app.closers = append(app.closers, closer)
		otp = store
	default:
		_ = app.Close()
		return nil, fmt.Errorf("unknown otp store %q", c.OTPStore)
	}

	app.identities = services.NewIdentityService(db, rm, otp, services.NewLogMailer(l), c, l)
	app.profiles = services.NewProfileService(db, rm, services.NewS3PhotoSigner(c), l)
	if c.SeedDemoAccounts {
		app.seeder = services.NewSeeder(db, rm, app.identities, l)
	}

	return app, nil
}

// Run seeds demo accounts when configured and serves until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "otp_store", app.config.OTPStore)

	if app.seeder != nil {
		if err := app.seeder.Seed(ctx, services.DemoAccounts); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.identities, app.profiles, app.config.SecretKey)
	return s.Run(ctx)
}

// Close releases the redis client and the database, newest first.
func (app *App) Close() error {
	var first error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}
