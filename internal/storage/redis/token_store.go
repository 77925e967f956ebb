package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/taglock/internal/storage"
)

type tokenStore struct {
	client *redis.Client
}

// Pair stores the token, replacing any previous pairing
func (s *tokenStore) Pair(ctx context.Context, token storage.PairedToken) error {
	if token.PairedAt.IsZero() {
		token.PairedAt = time.Now()
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.client.Set(ctx, tokenKey, string(data), 0).Err()
}

// Get retrieves the paired token
func (s *tokenStore) Get(ctx context.Context) (*storage.PairedToken, error) {
	data, err := s.client.Get(ctx, tokenKey).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var token storage.PairedToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// Unpair removes the paired token; removing an absent token is not an error
func (s *tokenStore) Unpair(ctx context.Context) error {
	return s.client.Del(ctx, tokenKey).Err()
}
