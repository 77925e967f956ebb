package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/taglock/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "taglock.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestEventStoreAppendAssignsMonotonicIDs(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	events := store.Events()
	var lastID uint64
	for i := 0; i < 5; i++ {
		stored, err := events.Append(context.Background(), storage.UsageEvent{
			Timestamp:   time.Now().UnixMilli(),
			PackageName: "com.example.app",
			Category:    storage.CategorySocial,
		})
		if err != nil {
			t.Fatalf("append event: %v", err)
		}
		if stored.ID <= lastID {
			t.Fatalf("expected id > %d, got %d", lastID, stored.ID)
		}
		lastID = stored.ID
	}
}

func TestEventStoreRecentEventsOrder(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	events := store.Events()
	base := time.Now().UnixMilli()
	for i := 0; i < 4; i++ {
		if _, err := events.Append(context.Background(), storage.UsageEvent{
			Timestamp:   base + int64(i),
			PackageName: "com.example.app",
			Category:    storage.CategoryGame,
		}); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	recent, err := events.RecentEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].ID <= recent[1].ID {
		t.Fatalf("expected most recent first, got ids %d, %d", recent[0].ID, recent[1].ID)
	}
}

func TestEventStoreEventsSinceAndPurge(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	events := store.Events()
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	if _, err := events.Append(context.Background(), storage.UsageEvent{
		Timestamp:   old.UnixMilli(),
		PackageName: "com.example.old",
	}); err != nil {
		t.Fatalf("append old event: %v", err)
	}
	if _, err := events.Append(context.Background(), storage.UsageEvent{
		Timestamp:   now.UnixMilli(),
		PackageName: "com.example.new",
	}); err != nil {
		t.Fatalf("append new event: %v", err)
	}

	since, err := events.EventsSince(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("events since: %v", err)
	}
	if len(since) != 1 || since[0].PackageName != "com.example.new" {
		t.Fatalf("expected only the new event, got %v", since)
	}

	deleted, err := events.DeleteEventsBefore(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete events before: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted event, got %d", deleted)
	}
}

func TestAppStoreUpsertAndToggle(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	apps := store.Apps()
	app := storage.BlockedApp{
		PackageName: "com.example.social",
		AppName:     "Social",
		Category:    storage.CategorySocial,
		IsBlocked:   true,
	}
	if err := apps.Upsert(context.Background(), app); err != nil {
		t.Fatalf("upsert app: %v", err)
	}

	got, err := apps.Get(context.Background(), app.PackageName)
	if err != nil {
		t.Fatalf("get app: %v", err)
	}
	if !got.IsBlocked {
		t.Fatal("expected app to be blocked")
	}

	if err := apps.SetBlocked(context.Background(), app.PackageName, false); err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	got, err = apps.Get(context.Background(), app.PackageName)
	if err != nil {
		t.Fatalf("get app after toggle: %v", err)
	}
	if got.IsBlocked {
		t.Fatal("expected app to be unblocked")
	}

	// SetBlocked on an unknown package creates a record.
	if err := apps.SetBlocked(context.Background(), "com.example.unknown", true); err != nil {
		t.Fatalf("set blocked on unknown package: %v", err)
	}
	list, err := apps.List(context.Background())
	if err != nil {
		t.Fatalf("list apps: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(list))
	}
}

func TestSessionStoreSingleOpenInvariant(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	start := time.Now()

	first, err := sessions.Open(context.Background(), start)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if !first.Open() {
		t.Fatal("expected session to be open")
	}

	if _, err := sessions.Open(context.Background(), start.Add(time.Second)); !errors.Is(err, storage.ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}

	open, err := sessions.GetOpen(context.Background())
	if err != nil {
		t.Fatalf("get open session: %v", err)
	}
	if open.ID != first.ID {
		t.Fatalf("expected open session %d, got %d", first.ID, open.ID)
	}

	end := start.Add(30 * time.Minute)
	closed, err := sessions.Close(context.Background(), first.ID, end, "nfc")
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	if closed.Open() {
		t.Fatal("expected session to be closed")
	}
	if closed.DurationMS == nil || *closed.DurationMS != end.Sub(start).Milliseconds() {
		t.Fatalf("unexpected duration: %v", closed.DurationMS)
	}
	if closed.UnlockMethod != "nfc" {
		t.Fatalf("expected unlock method nfc, got %q", closed.UnlockMethod)
	}

	if _, err := sessions.GetOpen(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after close, got %v", err)
	}

	// A new session can open once the previous one is closed.
	if _, err := sessions.Open(context.Background(), end.Add(time.Minute)); err != nil {
		t.Fatalf("open second session: %v", err)
	}
}

func TestSessionStoreRecentAndCleanup(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	sessions := store.Sessions()
	oldStart := time.Now().Add(-96 * time.Hour)

	old, err := sessions.Open(context.Background(), oldStart)
	if err != nil {
		t.Fatalf("open old session: %v", err)
	}
	if _, err := sessions.Close(context.Background(), old.ID, oldStart.Add(time.Hour), "nfc"); err != nil {
		t.Fatalf("close old session: %v", err)
	}

	if _, err := sessions.Open(context.Background(), time.Now()); err != nil {
		t.Fatalf("open current session: %v", err)
	}

	recent, err := sessions.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent sessions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(recent))
	}

	deleted, err := sessions.DeleteClosedBefore(context.Background(), time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("delete closed sessions: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted session, got %d", deleted)
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	token := store.Token()

	if _, err := token.Get(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before pairing, got %v", err)
	}

	if err := token.Pair(context.Background(), storage.PairedToken{TokenID: "04:a2:b9:11"}); err != nil {
		t.Fatalf("pair token: %v", err)
	}
	got, err := token.Get(context.Background())
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got.TokenID != "04:a2:b9:11" {
		t.Fatalf("expected token 04:a2:b9:11, got %q", got.TokenID)
	}

	// Pairing again replaces the previous token.
	if err := token.Pair(context.Background(), storage.PairedToken{TokenID: "04:ff:00:23"}); err != nil {
		t.Fatalf("re-pair token: %v", err)
	}
	got, err = token.Get(context.Background())
	if err != nil {
		t.Fatalf("get token after re-pair: %v", err)
	}
	if got.TokenID != "04:ff:00:23" {
		t.Fatalf("expected replaced token, got %q", got.TokenID)
	}

	if err := token.Unpair(context.Background()); err != nil {
		t.Fatalf("unpair token: %v", err)
	}
	if _, err := token.Get(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after unpair, got %v", err)
	}

	// Unpairing when nothing is paired is a no-op.
	if err := token.Unpair(context.Background()); err != nil {
		t.Fatalf("unpair when empty: %v", err)
	}
}
