package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrSessionOpen is returned when opening a blocking session while another
// session is still open. This indicates a bug in the caller and must not be
// retried silently.
var ErrSessionOpen = errors.New("storage: a blocking session is already open")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Events() EventStore
	Apps() AppStore
	Sessions() SessionStore
	Token() TokenStore
}

// EventStore manages the append-only usage event log.
type EventStore interface {
	// Append stores the event, assigns its ID, and returns the stored copy.
	Append(ctx context.Context, event UsageEvent) (UsageEvent, error)
	// RecentEvents returns up to limit events, most recent first.
	RecentEvents(ctx context.Context, limit int) ([]UsageEvent, error)
	// EventsSince returns all events with timestamp >= start, oldest first.
	EventsSince(ctx context.Context, start time.Time) ([]UsageEvent, error)
	// DeleteEventsBefore removes events with timestamp < cutoff.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AppStore manages per-package block configuration.
type AppStore interface {
	Upsert(ctx context.Context, app BlockedApp) error
	Get(ctx context.Context, packageName string) (*BlockedApp, error)
	SetBlocked(ctx context.Context, packageName string, blocked bool) error
	Delete(ctx context.Context, packageName string) error
	List(ctx context.Context) ([]BlockedApp, error)
}

// SessionStore manages blocking sessions. The single-open-session invariant
// is enforced at the storage layer: Open fails with ErrSessionOpen when a
// session with no end time already exists.
type SessionStore interface {
	Open(ctx context.Context, start time.Time) (*BlockingSession, error)
	GetOpen(ctx context.Context) (*BlockingSession, error)
	Close(ctx context.Context, id uint64, end time.Time, unlockMethod string) (*BlockingSession, error)
	Recent(ctx context.Context, limit int) ([]BlockingSession, error)
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TokenStore manages the single paired physical token.
type TokenStore interface {
	Pair(ctx context.Context, token PairedToken) error
	Get(ctx context.Context) (*PairedToken, error)
	Unpair(ctx context.Context) error
}
