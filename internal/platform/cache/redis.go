package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quadro-commerce/api/internal/platform/config"
)

const revokedTokenKeyPrefix = "auth:revoked:"

// Client wraps the shared Redis connection.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: connect redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping verifies the connection is still alive.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errors.New("cache: client not initialised")
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// TokenRevocationStore keeps revoked token ids until their natural expiry.
// Entries age out with a TTL so the set never grows beyond the token lifetime.
type TokenRevocationStore struct {
	client *Client
}

// NewTokenRevocationStore builds a revocation store on the shared client.
func NewTokenRevocationStore(client *Client) (*TokenRevocationStore, error) {
	if client == nil || client.rdb == nil {
		return nil, errors.New("cache: revocation store requires redis client")
	}
	return &TokenRevocationStore{client: client}, nil
}

// Revoke marks a token id as revoked for the remaining token lifetime.
func (s *TokenRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return errors.New("cache: revocation store not initialised")
	}
	if tokenID == "" {
		return errors.New("cache: token id is required")
	}
	if ttl <= 0 {
		// Already expired tokens need no denylist entry.
		return nil
	}
	if err := s.client.rdb.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("cache: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (s *TokenRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("cache: revocation store not initialised")
	}
	n, err := s.client.rdb.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("cache: check token: %w", err)
	}
	return n > 0, nil
}
