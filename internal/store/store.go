package store

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/eldtechnologies/roomdrop/internal/store KVStore

// NoExpiry is reported by TTL for a key that exists without an expiry.
const NoExpiry time.Duration = -1

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// KVStore is the key-value contract the room services are written against.
// Values are opaque JSON documents; expiry is handled natively by the backend.
// Both RedisStore and BadgerStore implement this interface.
type KVStore interface {
	// Connection management
	Ping(ctx context.Context) error
	Close() error

	// Get returns the value under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key, expiring after ttl. A ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes key and reports how many keys were removed.
	Del(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining lifetime of key, NoExpiry for a persistent
	// key, or ErrNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RoomKey returns the key holding the room document for a canonical code.
func RoomKey(code string) string {
	return "room:" + code
}
