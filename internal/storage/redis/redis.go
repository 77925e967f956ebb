// Package redis provides a Redis-backed implementation of the storage
// interfaces for setups where the agent's state should live off-host.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/storage"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client   *redis.Client
	events   *eventStore
	apps     *appStore
	sessions *sessionStore
	token    *tokenStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:   client,
		events:   &eventStore{client: client},
		apps:     &appStore{client: client},
		sessions: &sessionStore{client: client},
		token:    &tokenStore{client: client},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Events returns the EventStore implementation
func (s *Store) Events() storage.EventStore {
	return s.events
}

// Apps returns the AppStore implementation
func (s *Store) Apps() storage.AppStore {
	return s.apps
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessions
}

// Token returns the TokenStore implementation
func (s *Store) Token() storage.TokenStore {
	return s.token
}
