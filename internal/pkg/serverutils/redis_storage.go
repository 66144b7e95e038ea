package serverutils

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type redisStorage struct {
	client *redis.Client
}

var _ fiber.Storage = &redisStorage{}

// NewRedisStorage adapts a redis client to fiber.Storage so the rate
// limiter can share counters across instances.
func NewRedisStorage(client *redis.Client) fiber.Storage {
	return &redisStorage{client: client}
}

func (s *redisStorage) Get(key string) ([]byte, error) {
	val, err := s.client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *redisStorage) Set(key string, val []byte, exp time.Duration) error {
	return s.client.Set(context.Background(), key, val, exp).Err()
}

func (s *redisStorage) Delete(key string) error {
	return s.client.Del(context.Background(), key).Err()
}

func (s *redisStorage) Reset() error {
	return s.client.FlushDB(context.Background()).Err()
}

func (s *redisStorage) Close() error {
	return s.client.Close()
}
