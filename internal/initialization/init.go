// The initialization package contains functions that set up required
// dependencies such as the SQLite database backing the credential store.
package initialization

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate"
	"github.com/golang-migrate/migrate/database/sqlite3"
	_ "github.com/golang-migrate/migrate/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SetupDB creates the credential schema if it does not yet exist and applies
// all pending migrations. Running against an up-to-date database is not an
// error.
func SetupDB(db *sql.DB, folder, dbname string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		log.Error().Err(err).Msg("failed to create sqlite3 migration driver")
		return err
	}

	mig, err := migrate.NewWithDatabaseInstance(
		"file://"+folder,
		dbname,
		driver,
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create Migrate object")
		return err
	}

	err = mig.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error().Err(err).Msg("failed to run migrations")
		return err
	}
	return nil
}

func OpenDB(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", connString)
	if err != nil {
		log.Error().Err(err).Str("connection string", connString).Msg("failed to open database")
	}
	return db, err
}
