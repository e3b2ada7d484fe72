package cache

import (
	"context"
	"errors"
	"time"

	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// Remote is a cache tier shared between shards. Get returns ErrMiss for
// absent keys; any other error is a failure of the tier itself.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type RedisRemote struct {
	c   *redis.Client
	now func() time.Time
}

func NewRedisRemote(url string) (*RedisRemote, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}

	return &RedisRemote{c: redis.NewClient(opt), now: time.Now}, nil
}

func (r *RedisRemote) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	pipe := r.c.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrMiss
		}
		return nil, time.Time{}, errutil.With(err)
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, time.Time{}, errutil.With(err)
	}

	// Keys without an expiry report a negative TTL; they are never written
	// that way, so treat them as stale.
	d := ttl.Val()
	if d <= 0 {
		return nil, time.Time{}, ErrMiss
	}

	return data, r.now().Add(d), nil
}

func (r *RedisRemote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errutil.With(err)
	}
	return nil
}

func (r *RedisRemote) Delete(ctx context.Context, keys ...string) error {
	if err := r.c.Del(ctx, keys...).Err(); err != nil {
		return errutil.With(err)
	}
	return nil
}

func (r *RedisRemote) Close() error {
	return r.c.Close()
}
