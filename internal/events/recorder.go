package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/taglock/internal/aggregate"
	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/metrics"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/rs/zerolog"
)

// RecordInput carries the caller-supplied fields of a usage event. The
// recorder derives everything else from the clock and same-day history.
type RecordInput struct {
	PackageName     string
	AppName         string
	Category        storage.AppCategory
	SessionDuration time.Duration
	WasBlocked      bool
	UnlockAttempted bool
	UnlockSucceeded bool
	RiskScore       float64
}

// Recorder appends usage events with their daily aggregates derived at write
// time: launch count, gap to the previous same-package use, and running
// screen-time totals since local midnight.
type Recorder struct {
	events storage.EventStore
	clock  clock.Clock
	logger zerolog.Logger
}

// NewRecorder creates a usage event recorder.
func NewRecorder(events storage.EventStore, clk clock.Clock, logger zerolog.Logger) *Recorder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Recorder{
		events: events,
		clock:  clk,
		logger: logger.With().Str("component", "recorder").Logger(),
	}
}

// DayStart returns local midnight for the given time. Daily aggregates are
// bounded by local wall-clock midnight, not UTC.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Record derives the daily fields for the event, appends it, and returns the
// stored copy with its assigned id.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (storage.UsageEvent, error) {
	now := r.clock.Now()
	dayStart := DayStart(now)

	today, err := r.events.EventsSince(ctx, dayStart)
	if err != nil {
		return storage.UsageEvent{}, fmt.Errorf("query same-day events: %w", err)
	}

	launches := aggregate.DailyLaunchCount(today, in.PackageName, dayStart) + 1 // this event counts
	totalScreenTimeMS := aggregate.TotalScreenTimeSince(today, dayStart)

	var sinceLastUseMS int64
	if gap := aggregate.TimeSinceMostRecent(today, in.PackageName, now); gap != aggregate.NoPriorUse {
		sinceLastUseMS = gap.Milliseconds()
	}

	category := in.Category
	if category == "" {
		category = storage.CategoryOther
	}

	durationMS := in.SessionDuration.Milliseconds()
	event := storage.UsageEvent{
		Timestamp:                   now.UnixMilli(),
		DayOfWeek:                   int(now.Weekday()) + 1, // 1=Sunday .. 7=Saturday
		HourOfDay:                   now.Hour(),
		PackageName:                 in.PackageName,
		AppName:                     in.AppName,
		Category:                    category,
		SessionDurationMS:           durationMS,
		TimeSinceLastUseMS:          sinceLastUseMS,
		DailyAppLaunches:            launches,
		TotalDailyScreenTimeMS:      totalScreenTimeMS,
		CumulativeDailyScreenTimeMS: totalScreenTimeMS + durationMS,
		WasBlocked:                  in.WasBlocked,
		UnlockAttempted:             in.UnlockAttempted,
		UnlockSucceeded:             in.UnlockSucceeded,
		RiskScore:                   in.RiskScore,
	}

	stored, err := r.events.Append(ctx, event)
	if err != nil {
		return storage.UsageEvent{}, fmt.Errorf("append event: %w", err)
	}

	metrics.EventsRecorded.WithLabelValues(string(category)).Inc()

	r.logger.Debug().
		Uint64("event_id", stored.ID).
		Str("package", stored.PackageName).
		Int("daily_launches", stored.DailyAppLaunches).
		Bool("blocked", stored.WasBlocked).
		Msg("Recorded usage event")

	return stored, nil
}

// Recent returns up to limit events, most recent first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]storage.UsageEvent, error) {
	return r.events.RecentEvents(ctx, limit)
}

// Today returns all events since local midnight, oldest first.
func (r *Recorder) Today(ctx context.Context) ([]storage.UsageEvent, error) {
	return r.events.EventsSince(ctx, DayStart(r.clock.Now()))
}
