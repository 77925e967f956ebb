package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/taglock/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

// Open creates a new open session. It fails with storage.ErrSessionOpen when
// another session is still open; the check and the insert happen in the same
// transaction so concurrent callers cannot race past the invariant.
func (s *sessionStore) Open(ctx context.Context, start time.Time) (*storage.BlockingSession, error) {
	var session storage.BlockingSession
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return fmt.Errorf("sessions bucket missing")
		}
		if b.Get([]byte(openSessionKey)) != nil {
			return storage.ErrSessionOpen
		}
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next session id: %w", err)
		}
		session = storage.BlockingSession{
			ID:        id,
			StartTime: start,
		}
		data, err := marshal(session)
		if err != nil {
			return err
		}
		if err := b.Put(u64Key(id), data); err != nil {
			return err
		}
		return b.Put([]byte(openSessionKey), u64Key(id))
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) GetOpen(ctx context.Context) (*storage.BlockingSession, error) {
	var session *storage.BlockingSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return storage.ErrNotFound
		}
		marker := b.Get([]byte(openSessionKey))
		if marker == nil {
			return storage.ErrNotFound
		}
		value := b.Get(marker)
		if value == nil {
			return storage.ErrNotFound
		}
		var result storage.BlockingSession
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		session = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) Close(ctx context.Context, id uint64, end time.Time, unlockMethod string) (*storage.BlockingSession, error) {
	var session storage.BlockingSession
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get(u64Key(id))
		if value == nil {
			return storage.ErrNotFound
		}
		if err := unmarshal(value, &session); err != nil {
			return err
		}
		duration := end.Sub(session.StartTime).Milliseconds()
		session.EndTime = &end
		session.DurationMS = &duration
		session.UnlockMethod = unlockMethod
		data, err := marshal(session)
		if err != nil {
			return err
		}
		if err := b.Put(u64Key(id), data); err != nil {
			return err
		}
		return b.Delete([]byte(openSessionKey))
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Recent(ctx context.Context, limit int) ([]storage.BlockingSession, error) {
	sessions := make([]storage.BlockingSession, 0, limit)
	return sessions, s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(sessions) < limit; k, v = c.Prev() {
			// Skip the open-session marker; session keys are 8 bytes.
			if len(k) != 8 {
				continue
			}
			var session storage.BlockingSession
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})
}

func (s *sessionStore) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != 8 {
				continue
			}
			var session storage.BlockingSession
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			if !session.Open() && session.StartTime.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
}
