package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

const redisKeyPrefix = "credence:state:"

// Redis stores each user's state as one JSON document.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the server at redisURL, e.g. redis://localhost:6379/0.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client), nil
}

func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (s *Redis) Load(ctx context.Context, userID string) (*credibility.State, error) {
	raw, err := withRetry(ctx, func(ctx context.Context) ([]byte, error) {
		raw, err := s.client.Get(ctx, redisKey(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", userID, err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return decodeState(raw)
}

func (s *Redis) Save(ctx context.Context, userID string, st *credibility.State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	_, err = withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		if err := s.client.Set(ctx, redisKey(userID), data, 0).Err(); err != nil {
			return struct{}{}, fmt.Errorf("redis set %s: %w", userID, err)
		}
		return struct{}{}, nil
	})
	return err
}
