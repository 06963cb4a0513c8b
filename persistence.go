package register

import (
	"context"
	"database/sql"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RegisterModels registers the package models with the persistence layer.
// Call once before building the client.
func RegisterModels() {
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*VerificationCode)(nil))
	persistence.RegisterModel((*RevokedToken)(nil))
}

// OpenSQLite opens a sqlite database handle through the shim driver.
func OpenSQLite(dsn string) (*sql.DB, error) {
	return sql.Open(sqliteshim.ShimName, dsn)
}

// SetupPersistence builds the persistence client on the given handle,
// registers this package's models and migrations, and runs them. The
// returned bun.DB is ready for NewRepositoryManager.
func SetupPersistence(ctx context.Context, cfg persistence.Config, db *sql.DB) (*bun.DB, error) {
	RegisterModels()

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client.DB(), nil
}
