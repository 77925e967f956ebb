package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goodtune/taglock/internal/storage"
)

type sessionStore struct {
	client *redis.Client
}

// Open starts a blocking session; the script refuses a second open session
func (s *sessionStore) Open(ctx context.Context, start time.Time) (*storage.BlockingSession, error) {
	session := storage.BlockingSession{StartTime: start}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	script := redis.NewScript(openSessionScript)
	keys := []string{sessionOpenKey, sessionSeqKey, sessionIndex}
	args := []interface{}{sessionKeyPrefix, start.UnixMilli(), string(data)}

	id, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, storage.ErrSessionOpen
	}

	session.ID = uint64(id)
	return &session, nil
}

// GetOpen returns the currently open session
func (s *sessionStore) GetOpen(ctx context.Context) (*storage.BlockingSession, error) {
	idStr, err := s.client.Get(ctx, sessionOpenKey).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse open session id: %w", err)
	}

	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseSession(data)
}

// Close ends the session and clears the open marker
func (s *sessionStore) Close(ctx context.Context, id uint64, end time.Time, unlockMethod string) (*storage.BlockingSession, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	session, err := parseSession(data)
	if err != nil {
		return nil, err
	}

	duration := end.Sub(session.StartTime).Milliseconds()
	session.EndTime = &end
	session.UnlockMethod = unlockMethod
	session.DurationMS = &duration

	encoded, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	script := redis.NewScript(closeSessionScript)
	keys := []string{sessionKey(id), sessionOpenKey}
	args := []interface{}{strconv.FormatUint(id, 10), string(encoded)}

	stored, err := script.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return nil, err
	}
	if stored == 0 {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

// Recent returns up to limit sessions, most recently started first
func (s *sessionStore) Recent(ctx context.Context, limit int) ([]storage.BlockingSession, error) {
	if limit <= 0 {
		return []storage.BlockingSession{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, sessionIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []storage.BlockingSession{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.BlockingSession, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		session, err := parseSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// DeleteClosedBefore removes closed sessions that started before cutoff
func (s *sessionStore) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixMilli())
	ids, err := s.client.ZRangeByScore(ctx, sessionIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	openID, err := s.client.Get(ctx, sessionOpenKey).Result()
	if err != nil && err != redis.Nil {
		return 0, err
	}

	deleted := 0
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		if id == openID {
			continue
		}
		pipe.Del(ctx, sessionKeyPrefix+id)
		pipe.ZRem(ctx, sessionIndex, id)
		deleted++
	}
	if deleted == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}
