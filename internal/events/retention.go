package events

import (
	"context"
	"time"

	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/rs/zerolog"
)

// RetentionScheduler purges old events and closed sessions once a day, off
// the hot path.
type RetentionScheduler struct {
	store         storage.Store
	purgeTime     time.Time // only hour and minute are used
	retentionDays int
	clock         clock.Clock
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a retention scheduler. purgeTime is a
// wall-clock time of day in HH:MM format.
func NewRetentionScheduler(store storage.Store, purgeTime string, retentionDays int, logger zerolog.Logger) (*RetentionScheduler, error) {
	parsed, err := time.Parse("15:04", purgeTime)
	if err != nil {
		return nil, err
	}

	return &RetentionScheduler{
		store:         store,
		purgeTime:     parsed,
		retentionDays: retentionDays,
		clock:         clock.RealClock{},
		logger:        logger.With().Str("component", "retention").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// SetClock sets the clock used to compute purge cutoffs (for testing).
func (rs *RetentionScheduler) SetClock(clk clock.Clock) {
	rs.clock = clk
}

// Start begins the scheduler loop.
func (rs *RetentionScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("purge_time", rs.purgeTime.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("Retention scheduler started")
}

// Stop stops the scheduler.
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
	rs.logger.Info().Msg("Retention scheduler stopped")
}

func (rs *RetentionScheduler) run() {
	for {
		next := rs.nextPurge()
		wait := time.Until(next)

		rs.logger.Debug().
			Time("next_purge", next).
			Dur("wait", wait).
			Msg("Scheduled next retention purge")

		select {
		case <-time.After(wait):
			rs.Purge(context.Background())
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RetentionScheduler) nextPurge() time.Time {
	now := rs.clock.Now()
	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.purgeTime.Hour(), rs.purgeTime.Minute(), 0, 0,
		now.Location(),
	)
	if now.After(today) {
		return today.AddDate(0, 0, 1)
	}
	return today
}

// Purge deletes events and closed sessions older than the retention window.
func (rs *RetentionScheduler) Purge(ctx context.Context) {
	cutoff := rs.clock.Now().AddDate(0, 0, -rs.retentionDays)

	deletedEvents, err := rs.store.Events().DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to purge old events")
	} else {
		metrics.EventsPurged.Add(float64(deletedEvents))
	}

	deletedSessions, err := rs.store.Sessions().DeleteClosedBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to purge old sessions")
	}

	rs.logger.Info().
		Int("events_deleted", deletedEvents).
		Int("sessions_deleted", deletedSessions).
		Time("cutoff", cutoff).
		Msg("Retention purge complete")
}
