package cart

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store loads and saves carts keyed by session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps each cart as a redis hash of product id -> quantity.
// Every save refreshes the expiry, so idle carts disappear after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string { return "cart:" + sessionID }

func (s *redisStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	fields, err := s.client.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	c := New()
	for field, value := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		c.Set(id, qty)
	}
	return c, nil
}

func (s *redisStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	key := cartKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if c.IsEmpty() {
			return nil
		}
		values := make([]any, 0, c.Len()*2)
		for _, l := range c.Lines() {
			values = append(values, strconv.FormatInt(l.ProductID, 10), l.Quantity)
		}
		pipe.HSet(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
