// Package cachekey derives version-scoped result cache keys. Every key embeds
// the collection version observed at lookup time, so bumping the version after
// an ingest makes all previously issued keys unreachable without any active
// eviction — stale entries simply expire by TTL.
package cachekey

import (
	"context"
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kareline/raggate/internal/db"
	"github.com/kareline/raggate/internal/domain"
)

// versionKeySuffix names the collection version counter under the key prefix.
const versionKeySuffix = "collection_version"

// store is the consumer interface for version reads and bumps.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Service computes cache keys and owns the collection version counter.
type Service struct {
	store  store
	prefix string
}

// New creates a cache key service. prefix is the shared key namespace ("rag:").
func New(s store, prefix string) *Service {
	return &Service{store: s, prefix: prefix}
}

// Normalize canonicalizes query text for cache-key stability: lower-cased,
// trimmed, with runs of whitespace and underscores collapsed to single
// spaces. Total function — never fails.
func Normalize(q string) string {
	q = strings.ToLower(q)
	q = strings.ReplaceAll(q, "_", " ")
	return strings.Join(strings.Fields(q), " ")
}

// Key derives the cache key for a query: "{prefix}{version}:{hash}" where the
// hash covers the normalized text, top-k, and rerank flag. The only error
// path is an unavailable store; callers treat that as cache-miss-equivalent,
// not fatal.
func (s *Service) Key(ctx context.Context, q domain.Query) (string, error) {
	ver, err := s.Version(ctx)
	if err != nil {
		return "", err
	}

	digest := sha1.Sum(fmt.Appendf(nil, "%s|%d|%t", Normalize(q.Text), q.TopK, q.WantRerank)) //nolint:gosec
	return fmt.Sprintf("%s%d:%s", s.prefix, ver, hex.EncodeToString(digest[:])), nil
}

// Version reads the current collection version, defaulting to 1 when the
// counter has never been set.
func (s *Service) Version(ctx context.Context) (int64, error) {
	data, err := s.store.Get(ctx, s.versionKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("read collection version: %w", err)
	}

	var ver int64
	if _, err := fmt.Sscanf(string(data), "%d", &ver); err != nil || ver < 1 {
		return 1, nil
	}
	return ver, nil
}

// BumpVersion atomically increments the collection version, invalidating all
// outstanding cache keys. Called exactly once per successful ingest.
func (s *Service) BumpVersion(ctx context.Context) error {
	n, err := s.store.IncrBy(ctx, s.versionKey(), 1)
	if err != nil {
		return fmt.Errorf("bump collection version: %w", err)
	}
	// An absent counter reads as version 1, but INCR on an absent key also
	// yields 1. Step once more so the very first bump still invalidates keys
	// issued under the default version.
	if n == 1 {
		if _, err := s.store.IncrBy(ctx, s.versionKey(), 1); err != nil {
			return fmt.Errorf("bump collection version: %w", err)
		}
	}
	return nil
}

func (s *Service) versionKey() string {
	return s.prefix + versionKeySuffix
}
