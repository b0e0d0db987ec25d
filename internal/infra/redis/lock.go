package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lockKeyPrefix = "cellguard:lock:"

// Deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Pushes the expiry forward only while the key still holds our token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker serializes fragment extraction of a version across processes.
type Locker struct {
	client       *redis.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewLocker creates a locker whose keys expire after ttl unless renewed by the
// holder.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		client:       client,
		ttl:          ttl,
		pollInterval: 100 * time.Millisecond,
	}
}

// Lock blocks until the version lock is held or ctx ends.
func (l *Locker) Lock(ctx context.Context, documentVersionID string) (func(), error) {
	key := lockKeyPrefix + documentVersionID
	token := uuid.New().String()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
			}
		})
	}

	return unlock, nil
}

// keepAlive extends the lock every third of its TTL until stop is closed, so
// an extraction slower than the TTL keeps exclusive ownership.
func (l *Locker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
			extended, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to extend lock")
				continue
			}
			if extended == 0 {
				log.Warn().Str("key", key).Msg("Lock lost before release")
				return
			}
		}
	}
}
