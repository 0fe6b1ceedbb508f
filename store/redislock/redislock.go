/*
Package redislock provides a generic.Locker backed by Redis.

PURPOSE:
  generic.KeyedMutex only serialises writers inside one process. When several
  API instances share one database, the per-loan and per-member locks must
  live somewhere they can all see. This package keeps them in Redis.

PROTOCOL:
  Lock:    SET key token NX PX ttl, polled until it succeeds or ctx is done
  Unlock:  Lua script deletes key only if it still holds our token

  The TTL bounds how long a crashed holder can block others. It must be
  longer than the slowest store transaction.

USAGE:
  locker := redislock.New(redis.NewClient(&redis.Options{Addr: addr}), redislock.Options{})
  loans := loan.NewService(store, locker, cfg, policy)
*/
package redislock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/warp/accrual-engine/generic"
)

const (
	DefaultTTL          = 30 * time.Second
	DefaultRetryBackoff = 25 * time.Millisecond
	DefaultPrefix       = "accrual:lock:"
)

// releaseScript deletes KEYS[1] only when it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	TTL          time.Duration
	RetryBackoff time.Duration
	Prefix       string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	return o
}

// Locker implements generic.Locker with Redis.
type Locker struct {
	client redis.UniversalClient
	opts   Options
}

func New(client redis.UniversalClient, opts Options) *Locker {
	return &Locker{client: client, opts: opts.withDefaults()}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	full := l.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.RetryBackoff)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, full, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", generic.ErrLockUnavailable, key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s: %v", generic.ErrLockUnavailable, key, err)
		}
		if ok {
			return l.unlocker(full, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", generic.ErrLockUnavailable, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				log.Printf("[Lock] failed to release %s: %v", key, err)
			}
		})
	}
}

// Ping checks the connection at startup.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ generic.Locker = (*Locker)(nil)
