package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisMedium stores each snapshot as a plain string value under its name.
type RedisMedium struct {
	client *redis.Client
}

func NewRedisMedium(opts *redis.Options) *RedisMedium {
	rdb := redis.NewClient(opts)
	return &RedisMedium{client: rdb}
}

func (s *RedisMedium) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMedium) Load(ctx context.Context, name string) ([]byte, error) {
	val, err := s.client.Get(ctx, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisMedium) Save(ctx context.Context, name string, payload []byte) error {
	return s.client.Set(ctx, name, payload, 0).Err()
}

func (s *RedisMedium) Close() error {
	return s.client.Close()
}
