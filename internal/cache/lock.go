package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.New("lock is already held")

// TryLock acquires the lock key with SET NX and the given TTL. The
// returned unlock must be called to release it early. ErrLocked means
// another holder has it.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (unlock func(), err error) {
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	// Only the holder's token may delete the key.
	unlockScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	return func() {
		_ = r.client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
	}, nil
}

// SyncLockKey names the lock held while provider syncs data of kind.
func SyncLockKey(provider, kind string) string {
	return fmt.Sprintf("plutotv:lock:sync:%s:%s", provider, kind)
}

// IsLocked reports whether the lock key exists.
func IsLocked(ctx context.Context, r *Redis, key string) bool {
	n, _ := r.client.Exists(ctx, key).Result()
	return n > 0
}
