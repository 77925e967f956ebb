// Package lock holds the blocking state machine. The lock starts engaged
// and may only be toggled by presenting the paired physical token.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/rs/zerolog"
)

// ErrNoToken is returned when a toggle is attempted before any token has
// been paired.
var ErrNoToken = errors.New("lock: no token paired")

// ErrTokenMismatch is returned when the presented token is not the paired
// one. The lock state does not change.
var ErrTokenMismatch = errors.New("lock: token does not match paired token")

// Notifier is told when the lock disengages so active blocking UI can be
// torn down.
type Notifier interface {
	Unblock()
}

// Machine is the token-gated lock. All transitions are serialized; the
// in-memory state is authoritative for gating while sessions record the
// history durably.
type Machine struct {
	mu       sync.Mutex
	locked   bool
	sessions storage.SessionStore
	tokens   storage.TokenStore
	clock    clock.Clock
	notifier Notifier
	logger   zerolog.Logger
}

// NewMachine creates a lock machine in the engaged state. notifier may be
// nil.
func NewMachine(sessions storage.SessionStore, tokens storage.TokenStore, notifier Notifier, logger zerolog.Logger) *Machine {
	metrics.LockEngaged.Set(1)
	return &Machine{
		locked:   true,
		sessions: sessions,
		tokens:   tokens,
		clock:    clock.RealClock{},
		notifier: notifier,
		logger:   logger.With().Str("component", "lock").Logger(),
	}
}

// SetClock sets the clock used for session timestamps (for testing).
func (m *Machine) SetClock(clk clock.Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clk
}

// Locked reports whether blocking is currently engaged.
func (m *Machine) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Restore reconciles in-memory state with storage after a restart. A
// session left open by a crash keeps the lock engaged; otherwise the lock
// also starts engaged and a fresh session is opened lazily on the next
// toggle.
func (m *Machine) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	open, err := m.sessions.GetOpen(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if open != nil {
		m.logger.Info().
			Uint64("session_id", open.ID).
			Time("started", open.StartTime).
			Msg("Resuming open blocking session")
	} else if _, err := m.sessions.Open(ctx, m.clock.Now()); err != nil && !errors.Is(err, storage.ErrSessionOpen) {
		return err
	}

	m.locked = true
	metrics.LockEngaged.Set(1)
	return nil
}

// Toggle flips the lock state if candidateTokenID matches the paired
// token. Locking opens a blocking session and fails with
// storage.ErrSessionOpen if one is somehow already open; unlocking closes
// the open session with the "nfc" unlock method, and the unlock happens
// even if the session write fails so a storage fault cannot leave the
// user locked out.
func (m *Machine) Toggle(ctx context.Context, candidateTokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.verify(ctx, candidateTokenID); err != nil {
		metrics.UnlockAttempts.WithLabelValues("rejected").Inc()
		m.logger.Warn().Err(err).Msg("Toggle refused")
		return m.locked, err
	}
	metrics.UnlockAttempts.WithLabelValues("accepted").Inc()

	now := m.clock.Now()
	if m.locked {
		m.unlock(ctx, now)
		return m.locked, nil
	}
	if err := m.lock(ctx, now); err != nil {
		return m.locked, err
	}
	return m.locked, nil
}

func (m *Machine) lock(ctx context.Context, now time.Time) error {
	session, err := m.sessions.Open(ctx, now)
	switch {
	case errors.Is(err, storage.ErrSessionOpen):
		// An open session while we think we are unlocked is a caller bug;
		// refuse rather than engage on top of it.
		m.logger.Error().Err(err).Msg("Refusing to engage: a blocking session is already open")
		return err
	case err != nil:
		m.logger.Error().Err(err).Msg("Failed to open blocking session")
	default:
		metrics.SessionsOpened.Inc()
		m.logger.Info().Uint64("session_id", session.ID).Msg("Blocking session opened")
	}

	m.locked = true
	metrics.LockEngaged.Set(1)
	m.logger.Info().Msg("Lock engaged")
	return nil
}

func (m *Machine) unlock(ctx context.Context, now time.Time) {
	open, err := m.sessions.GetOpen(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound), err == nil && open == nil:
		// Tolerated: unlock proceeds even without a session to close.
		m.logger.Warn().Msg("Unlock with no open blocking session")
	case err != nil:
		m.logger.Error().Err(err).Msg("Failed to look up open session")
	default:
		if _, err := m.sessions.Close(ctx, open.ID, now, UnlockMethodNFC); err != nil {
			m.logger.Error().Err(err).Uint64("session_id", open.ID).Msg("Failed to close blocking session")
		} else {
			m.logger.Info().
				Uint64("session_id", open.ID).
				Dur("duration", now.Sub(open.StartTime)).
				Msg("Blocking session closed")
		}
	}

	m.locked = false
	metrics.LockEngaged.Set(0)
	if m.notifier != nil {
		m.notifier.Unblock()
	}
	m.logger.Info().Msg("Lock disengaged")
}

// UnlockMethodNFC records that the session ended via a physical token tap.
const UnlockMethodNFC = "nfc"

func (m *Machine) verify(ctx context.Context, candidateTokenID string) error {
	paired, err := m.tokens.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoToken
	}
	if err != nil {
		return err
	}
	if paired.TokenID != candidateTokenID {
		return ErrTokenMismatch
	}
	return nil
}

// VerifyToken reports whether candidateTokenID matches the paired token
// without changing any state.
func (m *Machine) VerifyToken(ctx context.Context, candidateTokenID string) error {
	return m.verify(ctx, candidateTokenID)
}

// PairToken stores tokenID as the paired token, replacing any previous
// pairing.
func (m *Machine) PairToken(ctx context.Context, tokenID string) error {
	err := m.tokens.Pair(ctx, storage.PairedToken{
		TokenID:  tokenID,
		PairedAt: m.clock.Now(),
	})
	if err != nil {
		return err
	}
	m.logger.Info().Msg("Token paired")
	return nil
}

// UnpairToken removes the paired token. With no token paired the lock can
// no longer be toggled.
func (m *Machine) UnpairToken(ctx context.Context) error {
	if err := m.tokens.Unpair(ctx); err != nil {
		return err
	}
	m.logger.Info().Msg("Token unpaired")
	return nil
}

// IsPaired reports whether a token is currently paired.
func (m *Machine) IsPaired(ctx context.Context) (bool, error) {
	_, err := m.tokens.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
