// Package ephemeral wraps Redis as the TTL-backed key/value
// collaborator for presence and typing state. Callers treat any error
// from here as a soft condition; nothing durable lives behind it.
package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + ":" + k }

func (s *Store) Get(ctx context.Context, k string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(k)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ephemeral get: %w", err)
	}
	return v, true, nil
}

func (s *Store) SetTTL(ctx context.Context, k, v string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(k), v, ttl).Err(); err != nil {
		return fmt.Errorf("ephemeral set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, k string) error {
	if err := s.client.Del(ctx, s.key(k)).Err(); err != nil {
		return fmt.Errorf("ephemeral delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, k string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(k)).Result()
	if err != nil {
		return false, fmt.Errorf("ephemeral exists: %w", err)
	}
	return n > 0, nil
}

// ExistsBatch checks many keys in one pipelined round trip.
func (s *Store) ExistsBatch(ctx context.Context, keys []string) (map[string]bool, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, s.key(k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("ephemeral exists batch: %w", err)
	}
	out := make(map[string]bool, len(keys))
	for i, k := range keys {
		out[k] = cmds[i].Val() > 0
	}
	return out, nil
}

// ScanPrefix returns the live values stored under prefix+"*". Expired
// keys drop out of the scan on their own.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	match := s.key(prefix) + "*"
	var keys []string
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ephemeral scan: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ephemeral mget: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("ephemeral publish: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel)
}
