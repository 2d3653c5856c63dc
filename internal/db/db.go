// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codr1/themekit/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect selects placeholder syntax and the migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type DB struct {
	*sql.DB
	Dialect Dialect
	Queries *Queries
}

// New opens a SQLite database for the given data source name, ensures SQLite
// foreign keys are enabled in the DSN, applies embedded migrations, and
// returns a DB with queries bound to the connection.
func New(dataSourceName string) (*DB, error) {
	dataSourceName = ensureForeignKeysEnabledDSN(dataSourceName)
	sqlDB, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	database := wrap(sqlDB, DialectSQLite)
	if err := database.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	return database, nil
}

// NewFromConfig opens the configured database and applies migrations.
// It supports "sqlite" (creates the database directory if needed) and "postgres" (pgx).
func NewFromConfig(cfg *config.Config) (*DB, error) {
	database, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.migrateUp(); err != nil {
		database.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	return database, nil
}

// Open opens the configured database without touching the schema.
func Open(cfg *config.Config) (*DB, error) {
	var sqlDB *sql.DB
	var dialect Dialect
	var err error

	switch cfg.Database.Driver {
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
		dialect = DialectSQLite
		sqlDB, err = sql.Open("sqlite3", ensureForeignKeysEnabledDSN(cfg.Database.Filename))

	case "postgres":
		dialect = DialectPostgres
		sqlDB, err = sql.Open("pgx", cfg.Database.URL)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return wrap(sqlDB, dialect), nil
}

func wrap(sqlDB *sql.DB, dialect Dialect) *DB {
	return &DB{
		DB:      sqlDB,
		Dialect: dialect,
		Queries: NewQueries(sqlDB, dialect),
	}
}

// ensureForeignKeysEnabledDSN adds `_fk=1` to a SQLite DSN unless `_fk=` is already present.
func ensureForeignKeysEnabledDSN(dataSourceName string) string {
	if strings.Contains(dataSourceName, "_fk=") {
		return dataSourceName
	}
	if strings.Contains(dataSourceName, "?") {
		return dataSourceName + "&_fk=1"
	}
	return dataSourceName + "?_fk=1"
}

// NewMigrator builds a migrate instance over the embedded migrations for db's dialect.
// The caller owns the returned instance; closing it also closes db.
func NewMigrator(db *DB) (*migrate.Migrate, error) {
	var driver database.Driver
	var driverName string
	var err error

	switch db.Dialect {
	case DialectSQLite:
		driverName = "sqlite3"
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	case DialectPostgres:
		driverName = "pgx5"
		driver, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", db.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+string(db.Dialect))
	if err != nil {
		return nil, fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

// migrateUp applies pending migrations. A "no change" result is not an error.
// The migrate instance is not closed because that would close db.
func (db *DB) migrateUp() error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// WithTx creates a new DB instance with the given transaction
func (db *DB) WithTx(tx *sql.Tx) *DB {
	return &DB{
		DB:      db.DB,
		Dialect: db.Dialect,
		Queries: NewQueries(tx, db.Dialect),
	}
}

// BeginTx starts a transaction
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	return tx, nil
}

// RunInTx runs the given function in a transaction
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txDB := db.WithTx(tx)
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}

	return nil
}
