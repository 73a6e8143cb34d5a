package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/redis/go-redis/v9"
)

var _ sessions.KeyValue = (*KeyValue)(nil)

const defaultPrefix = "portal:session:"

// KeyValue is a Redis-backed sessions.KeyValue scoped to one key prefix.
type KeyValue struct {
	client redis.UniversalClient
	prefix string
}

// New creates a KeyValue using the default key prefix.
func New(client redis.UniversalClient) *KeyValue {
	return NewWithPrefix(client, defaultPrefix)
}

// NewWithPrefix creates a KeyValue with a custom key prefix.
func NewWithPrefix(client redis.UniversalClient, prefix string) *KeyValue {
	return &KeyValue{
		client: client,
		prefix: prefix,
	}
}

// Factory returns a sessions.KeyValueFactory giving each browser session its
// own prefix below the root prefix.
func Factory(client redis.UniversalClient, rootPrefix string) sessions.KeyValueFactory {
	if rootPrefix == "" {
		rootPrefix = defaultPrefix
	}
	return func(namespace string) sessions.KeyValue {
		return NewWithPrefix(client, rootPrefix+namespace+":")
	}
}

func (kv *KeyValue) Get(ctx context.Context, key string) (string, error) {
	value, err := kv.client.Get(ctx, kv.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sessions.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// SetMany writes every value inside one MULTI/EXEC so readers never observe a
// half-written session.
func (kv *KeyValue) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	var expiration time.Duration = redis.KeepTTL
	if ttl > 0 {
		expiration = ttl
	}

	_, err := kv.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, kv.prefix+k, v, expiration)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (kv *KeyValue) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, kv.prefix+k)
	}
	if err := kv.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
