package kvsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/learnsmart/core"
)

// RedisStore is a core.KVStore backed by Redis; TTLs are enforced by the server.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

var _ core.KVStore = (*RedisStore)(nil)

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.Wrap(s.client.Set(ctx, s.prefix+key, value, ttl).Err(), "redis set")
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrap(err, "redis getdel")
	}
	return val, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, s.prefix+key).Err(), "redis del")
}

// NewRedisClient opens a client and checks the connection.
func NewRedisClient(conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}
