// Package repositories opens the client's local SQLite database and exposes
// the repositories built on it.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/shopkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/shopkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopkeeper/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the database at path and applies
// migrations.
func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}
