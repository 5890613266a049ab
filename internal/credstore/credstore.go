package credstore

import (
	"context"
	"errors"
)

// Keys the session persists under. The three entries form a logical unit:
// they are written together on login and deleted together on logout, and a
// partial set must be treated as not logged in.
const (
	KeyInstance    = "instance"
	KeyAccessToken = "access_token"
	KeyAccount     = "account"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal storage error")
)

// Store is a minimal persisted key-value contract. It offers no transaction
// spanning multiple keys; callers that need a group of entries to be
// consistent have to write and clear them as a unit themselves.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
