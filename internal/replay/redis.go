package replay

import (
	"context"
	"time"

	pkgerrors "github.com/santinopnp/PNPtvLive-bot/pkg/errors"
	"github.com/santinopnp/PNPtvLive-bot/pkg/redis"
)

// RedisStore backs the replay guard with a shared keyed store so marks
// survive restarts and cover multiple instances. Expiry rides the key TTL;
// no sweeper is needed.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) CheckAndMark(ctx context.Context, key string) (bool, error) {
	first, err := s.client.SetNX(ctx, s.client.ReplayKey(key), "1", s.retention)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay store unavailable")
	}
	return first, nil
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.client.ReplayKey(key)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay store unavailable")
	}
	return nil
}

// Len is not cheaply answerable on a shared keyspace; health reporting
// shows -1 for the redis-backed store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	return -1, nil
}
