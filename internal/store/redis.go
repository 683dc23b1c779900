package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/driftlab/revdrift/pkg/shingle"
)

// RedisStore is a read-through cache in front of another Store. Values are
// the same hex-per-line text as the filesystem artifacts, so a cache entry
// and the file it mirrors are interchangeable.
type RedisStore struct {
	client *redis.Client
	inner  Store
	ttl    time.Duration
}

// NewRedisStore connects to Redis at addr and wraps inner. A short ping
// verifies the connection up front rather than at first use.
func NewRedisStore(addr, password string, db int, inner Store, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, inner: inner, ttl: ttl}, nil
}

func redisKey(key Key) string {
	return fmt.Sprintf("shingles:%s:%d:%s:%d", key.Doc, key.W, key.Budget.Label(), key.Version)
}

func (r *RedisStore) Get(ctx context.Context, key Key) ([]shingle.Fingerprint, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Result()
	if err == nil {
		return shingle.ReadSet(strings.NewReader(data))
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	set, err := r.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, key, set)
	return set, nil
}

func (r *RedisStore) Has(ctx context.Context, key Key) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(key)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	return r.inner.Has(ctx, key)
}

func (r *RedisStore) Put(ctx context.Context, key Key, set []shingle.Fingerprint) error {
	if err := r.inner.Put(ctx, key, set); err != nil {
		return err
	}
	r.fill(ctx, key, set)
	return nil
}

// fill is best-effort: a cache write failure never fails the operation the
// caller asked for.
func (r *RedisStore) fill(ctx context.Context, key Key, set []shingle.Fingerprint) {
	var buf bytes.Buffer
	if err := shingle.WriteSet(&buf, set); err != nil {
		return
	}
	r.client.Set(ctx, redisKey(key), buf.String(), r.ttl)
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		return err
	}
	return r.inner.Close()
}
