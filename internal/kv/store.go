// Package kv is the key-value persistence layer: one table of string keys
// holding JSON documents, reachable through MySQL, Postgres or memory.
package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("kv: key not found")

type Entry struct {
	Key   string
	Value []byte
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// MGet returns only the keys that exist.
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, entries []Entry) error
	MDel(ctx context.Context, keys []string) error

	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)

	// SetIfAbsent writes value only when key does not exist yet and reports
	// whether the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	// CompareAndSwap replaces the value of key only while it still equals old.
	CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error)

	Ping(ctx context.Context) error
}
