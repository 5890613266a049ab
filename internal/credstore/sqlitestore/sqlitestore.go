package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/gotoot/internal/credstore"
)

// SqliteStore keeps credentials in a single-table sqlite database so they
// survive restarts. The table is created by the migrations in the
// initialization package.
type SqliteStore struct {
	db *sql.DB
}

func New(db *sql.DB) credstore.Store {
	return &SqliteStore{db: db}
}

// handleError hides driver details behind the store's sentinel errors.
func handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return credstore.ErrNotFound
	default:
		log.Error().Err(err).Msg("credential store failure")
		return credstore.ErrInternal
	}
}

func (s *SqliteStore) Get(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, "SELECT value FROM credentials WHERE key = ?", key)
	var value string
	if err := row.Scan(&value); err != nil {
		return "", handleError(err)
	}
	return value, nil
}

func (s *SqliteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return handleError(err)
}

// Delete removes a key. Deleting a key that is not present is not an error;
// logout clears all keys regardless of which ones exist.
func (s *SqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", key)
	return handleError(err)
}
