package redis

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goodtune/taglock/internal/storage"
)

// Key layout. Events and sessions live in per-record hashes with an id
// field and a JSON data field, indexed by sorted sets keyed on timestamp.
const (
	eventSeqKey      = "taglock:events:seq"
	eventTimeIndex   = "taglock:events:by_time"
	eventKeyPrefix   = "taglock:event:"
	sessionSeqKey    = "taglock:sessions:seq"
	sessionOpenKey   = "taglock:sessions:open"
	sessionIndex     = "taglock:sessions:by_start"
	sessionKeyPrefix = "taglock:session:"
	appsKey          = "taglock:apps"
	tokenKey         = "taglock:token"
)

func eventKey(id uint64) string {
	return eventKeyPrefix + strconv.FormatUint(id, 10)
}

func sessionKey(id uint64) string {
	return sessionKeyPrefix + strconv.FormatUint(id, 10)
}

// parseEvent converts a Redis hash to a UsageEvent
func parseEvent(data map[string]string) (*storage.UsageEvent, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	id, err := strconv.ParseUint(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event id: %w", err)
	}

	var event storage.UsageEvent
	if err := json.Unmarshal([]byte(data["data"]), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	event.ID = id
	return &event, nil
}

// parseSession converts a Redis hash to a BlockingSession
func parseSession(data map[string]string) (*storage.BlockingSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	id, err := strconv.ParseUint(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session id: %w", err)
	}

	var session storage.BlockingSession
	if err := json.Unmarshal([]byte(data["data"]), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.ID = id
	return &session, nil
}
