// Package store persists opaque blobs by key. Each Load and Save moves a
// whole value; there are no partial reads or writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Keys used by the app.
const (
	KeySnapshot = "snapshot"
	KeyMarker   = "marker"
)

// ErrNotFound is returned by Load for a key that was never saved.
var ErrNotFound = errors.New("store: not found")

type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// Open picks a backend from a URL-ish spec:
//
//	memory                  in-process only
//	file:/var/lib/tides     one file per key in a directory
//	sqlite:/var/lib/t.db    a SQLite database
//	redis://host:6379/0     a Redis server
//	postgres://...          a PostgreSQL database
//
// A bare path is treated as file:.
func Open(ctx context.Context, spec string) (Store, error) {
	scheme, rest, found := strings.Cut(spec, ":")
	if !found {
		if spec == "" || spec == "memory" {
			return NewMemory(), nil
		}
		return NewDir(spec)
	}

	switch scheme {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewDir(strings.TrimPrefix(rest, "//"))
	case "sqlite":
		return NewSQLite(ctx, strings.TrimPrefix(rest, "//"))
	case "redis", "rediss":
		return NewRedis(ctx, spec)
	case "postgres", "postgresql":
		return NewPostgres(spec)
	default:
		return nil, fmt.Errorf("unknown store %q", scheme)
	}
}

// Memory keeps blobs in a map.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}
