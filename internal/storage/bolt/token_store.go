package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/taglock/internal/storage"
	"go.etcd.io/bbolt"
)

type tokenStore struct {
	db *bbolt.DB
}

func (s *tokenStore) Pair(ctx context.Context, token storage.PairedToken) error {
	if token.PairedAt.IsZero() {
		token.PairedAt = time.Now()
	}
	return putBucketValue(ctx, s.db, bucketToken, []byte(tokenKey), token)
}

func (s *tokenStore) Get(ctx context.Context) (*storage.PairedToken, error) {
	return getBucketValue[storage.PairedToken](ctx, s.db, bucketToken, []byte(tokenKey))
}

func (s *tokenStore) Unpair(ctx context.Context) error {
	err := deleteBucketValue(ctx, s.db, bucketToken, []byte(tokenKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
