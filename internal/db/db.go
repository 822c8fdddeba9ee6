package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/util"
	_ "modernc.org/sqlite"
)

const dbName = "history.sqlite"

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Database struct {
	db *sql.DB
}

// DefaultPath is where the history database lives unless told otherwise.
func DefaultPath() string {
	return filepath.Join(util.ConfigDir, dbName)
}

// New opens the database at fp, creating it and its directory if needed,
// and brings the schema up to date.
func New(ctx context.Context, fp string) (*Database, error) {
	if err := util.EnsureDir(filepath.Dir(fp)); err != nil {
		return nil, err
	}
	sqlDb, err := sql.Open("sqlite", fp)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// a single connection serializes writers from the daemon's passes
	sqlDb.SetMaxOpenConns(1)

	d := &Database{sqlDb}
	err = d.runMigrations(ctx)
	if err != nil {
		_ = sqlDb.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}
	return d, nil
}

func (d *Database) runMigrations(ctx context.Context) error {
	err := goose.SetDialect("sqlite")
	if err != nil {
		return fmt.Errorf("could not set dialect 'sqlite': %w", err)
	}
	goose.SetLogger(logging.MigrationLogger{})
	goose.SetBaseFS(embedMigrations)

	if err = goose.UpContext(ctx, d.db, "migrations"); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) Queries() *Queries {
	return NewQueries(d.db)
}
