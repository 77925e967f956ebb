// Package aggregate provides deterministic, side-effect-free statistics over
// a snapshot of usage events. Event slices are expected most recent first,
// as returned by storage.EventStore.RecentEvents.
package aggregate

import (
	"math"
	"time"

	"github.com/goodtune/taglock/internal/storage"
)

// NoPriorUse is returned by TimeSinceMostRecent when the package has no
// recorded event.
const NoPriorUse = time.Duration(math.MaxInt64)

// DailyLaunchCount counts events for the package at or after dayStart.
func DailyLaunchCount(events []storage.UsageEvent, packageName string, dayStart time.Time) int {
	startMS := dayStart.UnixMilli()
	count := 0
	for _, e := range events {
		if e.PackageName == packageName && e.Timestamp >= startMS {
			count++
		}
	}
	return count
}

// AverageSessionDuration returns the mean session duration in milliseconds
// over at most the take most recent events, regardless of package. Returns 0
// when there are no events.
func AverageSessionDuration(events []storage.UsageEvent, take int) float64 {
	if len(events) == 0 || take <= 0 {
		return 0
	}
	if take > len(events) {
		take = len(events)
	}
	var total int64
	for _, e := range events[:take] {
		total += e.SessionDurationMS
	}
	return float64(total) / float64(take)
}

// TotalScreenTimeSince sums session durations for all packages at or after
// dayStart.
func TotalScreenTimeSince(events []storage.UsageEvent, dayStart time.Time) int64 {
	startMS := dayStart.UnixMilli()
	var total int64
	for _, e := range events {
		if e.Timestamp >= startMS {
			total += e.SessionDurationMS
		}
	}
	return total
}

// TimeSinceMostRecent returns the elapsed time since the most recent event
// for the package, or NoPriorUse when none exists.
func TimeSinceMostRecent(events []storage.UsageEvent, packageName string, now time.Time) time.Duration {
	var lastMS int64 = -1
	for _, e := range events {
		if e.PackageName == packageName && e.Timestamp > lastMS {
			lastMS = e.Timestamp
		}
	}
	if lastMS < 0 {
		return NoPriorUse
	}
	return time.Duration(now.UnixMilli()-lastMS) * time.Millisecond
}
