package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps Redis client for caching
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Set stores a value with expiration
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves a value
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	return value, nil
}

// GetString retrieves a string value
func (r *RedisCache) GetString(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Delete removes a key
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Exists checks if a key exists
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Incr increments a counter
func (r *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Expire sets expiration on a key
func (r *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return r.client.Expire(ctx, key, expiration).Err()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// InputStoreBackend adapts RedisCache to inputstore.CacheBackend: an
// optional, additive mirror of the Node Input Store's per-session
// snapshot, keyed by flow identity rather than by node.
type InputStoreBackend struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewInputStoreBackend wraps a RedisCache for Node Input Store snapshots.
func NewInputStoreBackend(cache *RedisCache, ttl time.Duration) *InputStoreBackend {
	return &InputStoreBackend{cache: cache, ttl: ttl}
}

func (b *InputStoreBackend) key(flowIdentity string) string {
	return "oocana:inputstore:" + flowIdentity
}

// Save stores a Node Input Store snapshot blob.
func (b *InputStoreBackend) Save(ctx context.Context, flowIdentity string, data []byte) error {
	return b.cache.client.Set(ctx, b.key(flowIdentity), data, b.ttl).Err()
}

// Load retrieves a previously saved snapshot, if any.
func (b *InputStoreBackend) Load(ctx context.Context, flowIdentity string) ([]byte, bool, error) {
	data, err := b.cache.client.Get(ctx, b.key(flowIdentity)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes a saved snapshot.
func (b *InputStoreBackend) Delete(ctx context.Context, flowIdentity string) error {
	return b.cache.client.Del(ctx, b.key(flowIdentity)).Err()
}
