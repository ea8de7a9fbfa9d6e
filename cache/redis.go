package cache

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/spatial"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
)

// redisKeyPrefix namespaces region entries so the store can share a
// database with other services.
const redisKeyPrefix = "kenaz:regions:"

// RedisStore is the backend for multi-instance deployments, where the
// upload may land on a different instance than the one that generated
// the stimulus.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given redis address.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.New("connecting to redis failed").
			WithTag("addr", addr).
			Wrap(err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, seed string) ([]spatial.AABB, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+seed).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New("reading regions from redis failed").
			WithTag("seed", seed).
			Wrap(err)
	}

	var boxes []spatial.AABB
	if err := json.Unmarshal(data, &boxes); err != nil {
		return nil, false, errors.New("decoding cached regions failed").
			WithTag("seed", seed).
			Wrap(err)
	}
	return boxes, true, nil
}

func (s *RedisStore) Put(ctx context.Context, seed string, boxes []spatial.AABB, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(boxes)
	if err != nil {
		return errors.New("encoding regions failed").
			WithTag("seed", seed).
			Wrap(err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+seed, data, ttl).Err(); err != nil {
		return errors.New("writing regions to redis failed").
			WithTag("seed", seed).
			Wrap(err)
	}
	return nil
}

func (s *RedisStore) Evict(ctx context.Context, seed string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+seed).Err(); err != nil {
		return errors.New("evicting regions from redis failed").
			WithTag("seed", seed).
			Wrap(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
