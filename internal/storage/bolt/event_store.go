package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/taglock/internal/storage"
	"go.etcd.io/bbolt"
)

type eventStore struct {
	db *bbolt.DB
}

func (s *eventStore) Append(ctx context.Context, event storage.UsageEvent) (storage.UsageEvent, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEvents))
		if b == nil {
			return fmt.Errorf("events bucket missing")
		}
		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next event id: %w", err)
		}
		event.ID = id
		data, err := marshal(event)
		if err != nil {
			return err
		}
		return b.Put(u64Key(id), data)
	})
	if err != nil {
		return storage.UsageEvent{}, err
	}
	return event, nil
}

func (s *eventStore) RecentEvents(ctx context.Context, limit int) ([]storage.UsageEvent, error) {
	events := make([]storage.UsageEvent, 0, limit)
	return events, s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEvents))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(events) < limit; k, v = c.Prev() {
			var event storage.UsageEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
}

func (s *eventStore) EventsSince(ctx context.Context, start time.Time) ([]storage.UsageEvent, error) {
	startMS := start.UnixMilli()
	events := make([]storage.UsageEvent, 0)
	return events, s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketEvents))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var event storage.UsageEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			if event.Timestamp >= startMS {
				events = append(events, event)
			}
			return nil
		})
	})
}

func (s *eventStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffMS := cutoff.UnixMilli()
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketEvents))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var event storage.UsageEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			if event.Timestamp < cutoffMS {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
}
