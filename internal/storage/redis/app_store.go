package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/taglock/internal/storage"
)

type appStore struct {
	client *redis.Client
}

// Upsert stores the per-package block configuration
func (s *appStore) Upsert(ctx context.Context, app storage.BlockedApp) error {
	if app.Category == "" {
		app.Category = storage.CategoryOther
	}
	if app.AddedAt.IsZero() {
		app.AddedAt = time.Now()
	}

	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}
	return s.client.HSet(ctx, appsKey, app.PackageName, string(data)).Err()
}

// Get retrieves the configuration for a package
func (s *appStore) Get(ctx context.Context, packageName string) (*storage.BlockedApp, error) {
	data, err := s.client.HGet(ctx, appsKey, packageName).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var app storage.BlockedApp
	if err := json.Unmarshal([]byte(data), &app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app: %w", err)
	}
	return &app, nil
}

// SetBlocked toggles blocking for a package, creating the record when a
// previously unknown package is blocked
func (s *appStore) SetBlocked(ctx context.Context, packageName string, blocked bool) error {
	app, err := s.Get(ctx, packageName)
	if err != nil {
		if err == storage.ErrNotFound && blocked {
			return s.Upsert(ctx, storage.BlockedApp{
				PackageName: packageName,
				AppName:     packageName,
				Category:    storage.CategoryOther,
				IsBlocked:   true,
			})
		}
		return err
	}

	app.IsBlocked = blocked
	return s.Upsert(ctx, *app)
}

// Delete removes a package's configuration
func (s *appStore) Delete(ctx context.Context, packageName string) error {
	return s.client.HDel(ctx, appsKey, packageName).Err()
}

// List returns every configured package
func (s *appStore) List(ctx context.Context) ([]storage.BlockedApp, error) {
	entries, err := s.client.HGetAll(ctx, appsKey).Result()
	if err != nil {
		return nil, err
	}

	apps := make([]storage.BlockedApp, 0, len(entries))
	for _, data := range entries {
		var app storage.BlockedApp
		if err := json.Unmarshal([]byte(data), &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}
