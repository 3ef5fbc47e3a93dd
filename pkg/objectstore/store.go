// Package objectstore stores binary objects such as voicemail audio.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("objectstore: object not found")

// Store is the minimal object storage contract.
// Keys are opaque to the store; callers own the namespacing.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
