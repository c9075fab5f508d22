// Package resultcache stores serialized retrieval results keyed by derived
// cache keys. All store failures degrade to cache misses.
package resultcache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/db"
)

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo is a read-through cache over the KV store.
type Repo struct {
	store  kvStore
	logger *zap.Logger
}

// New creates a result cache repository.
func New(s kvStore, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, logger: logger}
}

// Get returns the cached payload for key, or ok=false on a miss. Store
// errors are logged and reported as misses so the caller falls through to
// the backend.
func (r *Repo) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// Set stores payload under key for ttl. Failures are logged and swallowed;
// a broken cache never fails the request.
func (r *Repo) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := r.store.SetWithTTL(ctx, key, payload, ttl); err != nil {
		r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
