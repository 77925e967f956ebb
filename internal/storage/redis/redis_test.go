package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goodtune/taglock/internal/config"
	"github.com/goodtune/taglock/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // Full address "host:port"
		Port:         0,         // Not used when host contains port
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestEventStore_AppendAssignsMonotonicIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	events := store.Events()

	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	var lastID uint64
	for i := 0; i < 5; i++ {
		stored, err := events.Append(ctx, storage.UsageEvent{
			Timestamp:   base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			PackageName: "com.example.game",
			Category:    storage.CategoryGame,
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if stored.ID <= lastID {
			t.Errorf("event ID %d not greater than previous %d", stored.ID, lastID)
		}
		lastID = stored.ID
	}
}

func TestEventStore_RecentEventsOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	events := store.Events()

	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := events.Append(ctx, storage.UsageEvent{
			Timestamp:   base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			PackageName: "com.example.game",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := events.RecentEvents(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Timestamp < recent[1].Timestamp {
		t.Error("RecentEvents should be most recent first")
	}
	if recent[0].Timestamp != base.Add(3*time.Minute).UnixMilli() {
		t.Errorf("newest timestamp = %d, want %d", recent[0].Timestamp, base.Add(3*time.Minute).UnixMilli())
	}
}

func TestEventStore_SameTimestampKeepsInsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	events := store.Events()

	// Enough same-millisecond events that their ids cross a digit
	// boundary ("9" vs "10"), where index order alone misorders them.
	ts := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC).UnixMilli()
	var ids []uint64
	for i := 0; i < 12; i++ {
		stored, err := events.Append(ctx, storage.UsageEvent{
			Timestamp:   ts,
			PackageName: "com.example.game",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		ids = append(ids, stored.ID)
	}

	recent, err := events.RecentEvents(ctx, len(ids))
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(recent) != len(ids) {
		t.Fatalf("len(recent) = %d, want %d", len(recent), len(ids))
	}
	for i, ev := range recent {
		if want := ids[len(ids)-1-i]; ev.ID != want {
			t.Fatalf("recent[%d].ID = %d, want %d", i, ev.ID, want)
		}
	}

	since, err := events.EventsSince(ctx, time.UnixMilli(ts))
	if err != nil {
		t.Fatalf("EventsSince failed: %v", err)
	}
	for i, ev := range since {
		if ev.ID != ids[i] {
			t.Fatalf("since[%d].ID = %d, want %d", i, ev.ID, ids[i])
		}
	}
}

func TestEventStore_EventsSinceAndPurge(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	events := store.Events()

	base := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		_, err := events.Append(ctx, storage.UsageEvent{
			Timestamp:   base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			PackageName: "com.example.game",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	since, err := events.EventsSince(ctx, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("EventsSince failed: %v", err)
	}
	if len(since) != 3 {
		t.Fatalf("len(since) = %d, want 3", len(since))
	}
	if since[0].Timestamp > since[len(since)-1].Timestamp {
		t.Error("EventsSince should be oldest first")
	}

	deleted, err := events.DeleteEventsBefore(ctx, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	remaining, err := events.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(remaining) != 3 {
		t.Errorf("len(remaining) = %d, want 3", len(remaining))
	}
}

func TestSessionStore_SingleOpenSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	start := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	first, err := sessions.Open(ctx, start)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := sessions.Open(ctx, start.Add(time.Minute)); !errors.Is(err, storage.ErrSessionOpen) {
		t.Fatalf("second Open = %v, want ErrSessionOpen", err)
	}

	open, err := sessions.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if open.ID != first.ID {
		t.Errorf("open session ID = %d, want %d", open.ID, first.ID)
	}

	end := start.Add(30 * time.Minute)
	closed, err := sessions.Close(ctx, first.ID, end, "nfc")
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if closed.UnlockMethod != "nfc" {
		t.Errorf("UnlockMethod = %q, want nfc", closed.UnlockMethod)
	}
	if closed.DurationMS == nil || *closed.DurationMS != (30*time.Minute).Milliseconds() {
		t.Errorf("DurationMS = %v, want %d", closed.DurationMS, (30*time.Minute).Milliseconds())
	}

	if _, err := sessions.GetOpen(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetOpen after close = %v, want ErrNotFound", err)
	}

	// A new session may open once the previous one is closed.
	if _, err := sessions.Open(ctx, end.Add(time.Minute)); err != nil {
		t.Errorf("reopen failed: %v", err)
	}
}

func TestSessionStore_RecentAndPurge(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		start := base.AddDate(0, 0, i)
		s, err := sessions.Open(ctx, start)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := sessions.Close(ctx, s.ID, start.Add(time.Hour), "nfc"); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}
	open, err := sessions.Open(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	recent, err := sessions.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("len(recent) = %d, want 4", len(recent))
	}
	if recent[0].ID != open.ID {
		t.Errorf("newest session ID = %d, want open session %d", recent[0].ID, open.ID)
	}

	// Purge everything older than the open session; the open session
	// itself must survive even though it started before any cutoff.
	deleted, err := sessions.DeleteClosedBefore(ctx, base.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("DeleteClosedBefore failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if _, err := sessions.GetOpen(ctx); err != nil {
		t.Errorf("open session should survive purge: %v", err)
	}
}

func TestAppStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	apps := store.Apps()

	err := apps.Upsert(ctx, storage.BlockedApp{
		PackageName: "com.example.game",
		AppName:     "Example Game",
		Category:    storage.CategoryGame,
		IsBlocked:   true,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	app, err := apps.Get(ctx, "com.example.game")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !app.IsBlocked || app.AppName != "Example Game" {
		t.Errorf("unexpected app record: %+v", app)
	}

	if err := apps.SetBlocked(ctx, "com.example.game", false); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	app, err = apps.Get(ctx, "com.example.game")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if app.IsBlocked {
		t.Error("app should be unblocked")
	}

	// Blocking an unknown package creates its record.
	if err := apps.SetBlocked(ctx, "com.example.new", true); err != nil {
		t.Fatalf("SetBlocked(new) failed: %v", err)
	}
	list, err := apps.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(list) = %d, want 2", len(list))
	}

	if err := apps.Delete(ctx, "com.example.game"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := apps.Get(ctx, "com.example.game"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestTokenStore_PairReplaceUnpair(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tokens := store.Token()

	if _, err := tokens.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get before pairing = %v, want ErrNotFound", err)
	}

	err := tokens.Pair(ctx, storage.PairedToken{TokenID: "tag-1", PairedAt: time.Now()})
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	err = tokens.Pair(ctx, storage.PairedToken{TokenID: "tag-2", PairedAt: time.Now()})
	if err != nil {
		t.Fatalf("re-Pair failed: %v", err)
	}

	token, err := tokens.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if token.TokenID != "tag-2" {
		t.Errorf("TokenID = %q, want tag-2 after re-pairing", token.TokenID)
	}

	if err := tokens.Unpair(ctx); err != nil {
		t.Fatalf("Unpair failed: %v", err)
	}
	if _, err := tokens.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after unpair = %v, want ErrNotFound", err)
	}
	if err := tokens.Unpair(ctx); err != nil {
		t.Errorf("Unpair of absent token should not error: %v", err)
	}
}

func TestTokenStore_PairDefaultsPairedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tokens := store.Token()

	if err := tokens.Pair(ctx, storage.PairedToken{TokenID: "tag-1"}); err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	token, err := tokens.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if token.PairedAt.IsZero() {
		t.Error("PairedAt should default to the pairing time")
	}
}
