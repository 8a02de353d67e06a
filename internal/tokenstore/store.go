package tokenstore

import (
	"context"
	"errors"
)

// TokenKey is the fixed key the credential token is stored under. It is
// the only piece of client state that survives process restarts.
const TokenKey = "auth_token"

// ErrNotFound indicates no token is currently persisted.
var ErrNotFound = errors.New("no persisted token")

// Store is the durable client storage the session token lives in
// between runs. Save and Clear are idempotent.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close()
}
