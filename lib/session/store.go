// Package session stores user sessions for livecmp servers. A Manager ties
// a Store to a cookie and satisfies livecmp.Sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by stores for missing or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Store persists session values by id.
type Store interface {
	// Get returns the values of a live session or ErrNotFound.
	Get(ctx context.Context, id string) (map[string]any, error)
	// Put creates or replaces a session.
	Put(ctx context.Context, id string, values map[string]any, expires time.Time) error
	Delete(ctx context.Context, id string) error
	// Sweep removes expired sessions and reports how many were removed.
	Sweep(ctx context.Context) (int64, error)
	Close() error
}

// Open returns the store for driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("session: unknown driver %q", driver)
}

func encodeValues(values map[string]any) ([]byte, error) {
	raw, err := msgpack.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("session: encode: %w", err)
	}
	return raw, nil
}

func decodeValues(raw []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := msgpack.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return values, nil
}
