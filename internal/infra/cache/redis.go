package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"hubgate/internal/domain"
)

const DefaultKeyPrefix = "hubgate:devices:"

// RedisStore shares snapshots between instances. Expiry is delegated to the
// key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Key is {prefix}{userId}:{mode}.
func (s *RedisStore) Key(key domain.SnapshotKey) string {
	return fmt.Sprintf("%s%d:%s", s.prefix, key.UserID, key.Mode)
}

func (s *RedisStore) Get(ctx context.Context, key domain.SnapshotKey) (*domain.Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return &snap, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key domain.SnapshotKey, snap domain.Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.Key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key domain.SnapshotKey) error {
	if err := s.client.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
