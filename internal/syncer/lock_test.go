package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memRedis struct {
	values map[string]string
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockExclusive(t *testing.T) {
	store := &memRedis{values: map[string]string{}}
	ctx := context.Background()

	a, err := NewRedisLock(store, "possync:lock:drain:store-1", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	b, _ := NewRedisLock(store, "possync:lock:drain:store-1", time.Minute)

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("second terminal acquired a held lock")
	}
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if len(store.values) != 1 {
		t.Fatalf("non-owner release dropped the lock")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatalf("lock not reacquirable after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := &memRedis{values: map[string]string{}}
	ctx := context.Background()
	l, _ := NewRedisLock(store, "k", 0)
	if l.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", l.ttl)
	}
	if _, err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	delete(store.values, "k")
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewRedisLock(&memRedis{}, "", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
