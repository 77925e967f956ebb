package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/taglock/internal/storage"
	"go.etcd.io/bbolt"
)

type appStore struct {
	db *bbolt.DB
}

func (s *appStore) Upsert(ctx context.Context, app storage.BlockedApp) error {
	if app.AddedAt.IsZero() {
		app.AddedAt = time.Now()
	}
	if app.Category == "" {
		app.Category = storage.CategoryOther
	}
	return putBucketValue(ctx, s.db, bucketApps, []byte(app.PackageName), app)
}

func (s *appStore) Get(ctx context.Context, packageName string) (*storage.BlockedApp, error) {
	return getBucketValue[storage.BlockedApp](ctx, s.db, bucketApps, []byte(packageName))
}

func (s *appStore) SetBlocked(ctx context.Context, packageName string, blocked bool) error {
	app, err := s.Get(ctx, packageName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) && blocked {
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

func (s *appStore) Delete(ctx context.Context, packageName string) error {
	return deleteBucketValue(ctx, s.db, bucketApps, []byte(packageName))
}

func (s *appStore) List(ctx context.Context) ([]storage.BlockedApp, error) {
	return listBucket[storage.BlockedApp](ctx, s.db, bucketApps)
}
