package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/taglock/internal/storage"
)

type eventStore struct {
	client *redis.Client
}

// Append stores the event with a store-assigned id
func (s *eventStore) Append(ctx context.Context, event storage.UsageEvent) (storage.UsageEvent, error) {
	event.ID = 0
	data, err := json.Marshal(event)
	if err != nil {
		return storage.UsageEvent{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	script := redis.NewScript(appendEventScript)
	keys := []string{eventSeqKey, eventTimeIndex}
	args := []interface{}{eventKeyPrefix, event.Timestamp, string(data)}

	id, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return storage.UsageEvent{}, err
	}

	event.ID = uint64(id)
	return event, nil
}

// RecentEvents returns up to limit events, most recent first
func (s *eventStore) RecentEvents(ctx context.Context, limit int) ([]storage.UsageEvent, error) {
	if limit <= 0 {
		return []storage.UsageEvent{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, eventTimeIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	events, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	// Equal-millisecond scores tie-break lexically in the index; ids are
	// authoritative for insertion order.
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	return events, nil
}

// EventsSince returns all events with timestamp >= start, oldest first
func (s *eventStore) EventsSince(ctx context.Context, start time.Time) ([]storage.UsageEvent, error) {
	ids, err := s.client.ZRangeByScore(ctx, eventTimeIndex, &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	events, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

// DeleteEventsBefore removes events older than cutoff
func (s *eventStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixMilli())
	ids, err := s.client.ZRangeByScore(ctx, eventTimeIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, eventKeyPrefix+id)
		pipe.ZRem(ctx, eventTimeIndex, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// fetch pipelines hash reads for the given ids, preserving order
func (s *eventStore) fetch(ctx context.Context, ids []string) ([]storage.UsageEvent, error) {
	if len(ids) == 0 {
		return []storage.UsageEvent{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, eventKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	events := make([]storage.UsageEvent, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		event, err := parseEvent(data)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, nil
}
