package storage

import (
	"context"
	"errors"
)

// DurableStore is a string key-value medium that survives process restarts.
type DurableStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

var ErrNotFound = errors.New("key not found")
