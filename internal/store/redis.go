package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values with SET/GET and notifies with PUBLISH.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedis(client *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{client: client, timeout: timeout}
}

// DialRedis opens a client and checks that the server answers. An unreachable
// server is logged by the caller and retried implicitly by every operation.
func DialRedis(ctx context.Context, addr, password string, db int, timeout time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	s := NewRedis(rdb, timeout)
	if err := s.Ping(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, topic string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	val, err := r.client.Get(ctx, topic).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrMissing, topic)
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", ErrUnavailable, topic, err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, topic, value string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, topic, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, topic, err)
	}
	return nil
}

func (r *RedisStore) Publish(ctx context.Context, topic, value string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Publish(ctx, topic, value).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrUnavailable, topic, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
