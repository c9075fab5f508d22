package resultcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kareline/raggate/internal/db"
)

type mockKV struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

func TestGetRoundTrip(t *testing.T) {
	kv := &mockKV{}
	repo := New(kv, nil)
	ctx := context.Background()

	repo.Set(ctx, "rag:1:abc", []byte(`[{"rank":1}]`), 2*time.Minute)

	payload, ok := repo.Get(ctx, "rag:1:abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(payload) != `[{"rank":1}]` {
		t.Errorf("payload = %s", payload)
	}
	if kv.lastTTL != 2*time.Minute {
		t.Errorf("ttl = %v", kv.lastTTL)
	}
}

func TestGetMissOnAbsentKey(t *testing.T) {
	repo := New(&mockKV{}, nil)
	if _, ok := repo.Get(context.Background(), "rag:1:nope"); ok {
		t.Error("expected miss")
	}
}

func TestGetTreatsStoreErrorAsMiss(t *testing.T) {
	repo := New(&mockKV{getErr: errors.New("conn reset")}, nil)
	if _, ok := repo.Get(context.Background(), "rag:1:abc"); ok {
		t.Error("store error must read as a miss")
	}
}

func TestSetSwallowsStoreError(t *testing.T) {
	repo := New(&mockKV{setErr: errors.New("conn reset")}, nil)
	// Must not panic or surface the failure.
	repo.Set(context.Background(), "rag:1:abc", []byte("x"), time.Minute)
}
