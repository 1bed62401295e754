package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKV struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMockRedisKV() *mockRedisKV {
	return &mockRedisKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockRedisKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	v, ok := m.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (m *mockRedisKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	switch v := value.(type) {
	case string:
		m.values[key] = v
	case []byte:
		m.values[key] = string(v)
	}
	m.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKV) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (m *mockRedisKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisRefreshTokenStore(t *testing.T) {
	ctx := context.Background()
	kv := newMockRedisKV()
	store := &redisRefreshTokenStore{client: kv, prefix: "persona:refresh:"}

	if err := store.Store(ctx, "jti-1", "client-a", time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	if kv.values["persona:refresh:jti-1"] != "client-a" || kv.ttls["persona:refresh:jti-1"] != time.Hour {
		t.Fatalf("unexpected redis state %+v %+v", kv.values, kv.ttls)
	}
	ok, err := store.Exists(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("expected token to exist, ok=%v err=%v", ok, err)
	}
	if err := store.Revoke(ctx, "jti-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := store.Exists(ctx, "jti-1"); ok {
		t.Fatalf("expected token revoked")
	}
	if ok, err := store.Exists(ctx, "  "); ok || err != nil {
		t.Fatalf("expected blank jti to be absent, ok=%v err=%v", ok, err)
	}

	kv.err = errors.New("redis down")
	if _, err := store.Exists(ctx, "jti-2"); err == nil {
		t.Fatalf("expected redis error to propagate")
	}
}

func TestMemoryRefreshTokenStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryRefreshTokenStore().(*memoryRefreshTokenStore)
	store.now = func() time.Time { return now }

	if err := store.Store(ctx, "jti", "client", time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	if ok, _ := store.Exists(ctx, "jti"); !ok {
		t.Fatalf("expected token to exist")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := store.Exists(ctx, "jti"); ok {
		t.Fatalf("expected token to expire")
	}
}
