// Package kv holds the durable string key-value backends behind the token store.
package kv

import "context"

// Store is a flat string key-value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
