package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// unlinkBatch bounds how many keys one UNLINK carries during invalidation.
const unlinkBatch = 100

// Redis is the shared connection used for read caching, sync locks and the
// sync job queue. Cached values are JSON.
type Redis struct {
	client *redis.Client
}

// New parses a Redis URL such as "redis://host:6379/0". No connection is
// made until first use; call Ping to check reachability.
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Get decodes the JSON value under key. An absent key yields an error for
// which IsMiss is true.
func Get[T any](ctx context.Context, r *Redis, key string) (T, error) {
	var v T
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return v, nil
}

// Set stores v as JSON under key for ttl.
func Set(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Remember serves key from the cache, falling back to load on a miss or an
// undecodable entry. A successful load is cached for ttl; load errors are
// returned and never cached. Redis failures only cost a cache hit.
func Remember[T any](ctx context.Context, r *Redis, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	v, err := Get[T](ctx, r, key)
	if err == nil {
		return v, nil
	}
	if !IsMiss(err) {
		log.Printf("[cache] get %s: %v", key, err)
	}
	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := Set(ctx, r, key, v, ttl); err != nil {
		log.Printf("[cache] set %s: %v", key, err)
	}
	return v, nil
}

// Invalidate drops every key named in keys. Entries containing glob
// metacharacters are treated as SCAN patterns, e.g. "plutotv:channels:*".
func Invalidate(ctx context.Context, r *Redis, keys ...string) error {
	var exact []string
	var errs []error
	for _, k := range keys {
		if !strings.ContainsAny(k, "*?[") {
			exact = append(exact, k)
			continue
		}
		it := r.client.Scan(ctx, 0, k, unlinkBatch).Iterator()
		var batch []string
		for it.Next(ctx) {
			batch = append(batch, it.Val())
			if len(batch) == unlinkBatch {
				errs = append(errs, r.unlink(ctx, batch))
				batch = batch[:0]
			}
		}
		if err := it.Err(); err != nil {
			errs = append(errs, fmt.Errorf("cache scan %s: %w", k, err))
		}
		errs = append(errs, r.unlink(ctx, batch))
	}
	errs = append(errs, r.unlink(ctx, exact))
	return errors.Join(errs...)
}

func (r *Redis) unlink(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache unlink %v: %w", keys, err)
	}
	return nil
}
