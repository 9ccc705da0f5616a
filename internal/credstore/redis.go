package credstore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
)

const redisPingTimeout = 3 * time.Second

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	DB       int
	Password string
	// Prefix namespaces the keys, e.g. "tenderdesk:".
	Prefix string
}

// Redis keeps entries under a key prefix in Redis, for shared terminals
// and CI runners that must not write to the home directory.
type Redis struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, errors.NewStoreError(errors.ErrCodeStoreOpen, "redis", err).
			WithSuggestion("Check store.redis_addr or switch store.backend to file")
	}

	r := NewRedisClient(client, opts.Prefix)
	r.owned = true
	return r, nil
}

// NewRedisClient wraps an existing client. Close leaves it open.
func NewRedisClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError(errors.ErrCodeStoreBackend, r.Name(), err)
	}
	return value, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
