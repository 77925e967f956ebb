package risk

import (
	"time"

	"github.com/goodtune/taglock/internal/aggregate"
	"github.com/goodtune/taglock/internal/events"
	"github.com/goodtune/taglock/internal/storage"
)

// Factor value computations for the deterministic rule engine. Each factor
// maps the current context to a value in [0, 1]. Event slices are most
// recent first.

// bedtimeRisk peaks in the late-night hours around midnight.
func bedtimeRisk(hourOfDay int) float64 {
	switch hourOfDay {
	case 22, 23, 0, 1:
		return 1.0
	case 20, 21, 2, 3:
		return 0.6
	default:
		return 0.2
	}
}

// frequencyRisk scales with launches across all packages in the last 30
// minutes.
func frequencyRisk(evs []storage.UsageEvent, now time.Time) float64 {
	launches := launchesWithin(evs, now, 30*time.Minute)
	switch {
	case launches >= 10:
		return 1.0
	case launches >= 5:
		return 0.6
	case launches >= 2:
		return 0.3
	default:
		return 0.1
	}
}

// durationRisk scales with the average duration of the 10 most recent
// events. Zero when there is no history.
func durationRisk(evs []storage.UsageEvent) float64 {
	if len(evs) == 0 {
		return 0
	}
	avgMinutes := aggregate.AverageSessionDuration(evs, 10) / float64(time.Minute.Milliseconds())
	switch {
	case avgMinutes >= 20:
		return 1.0
	case avgMinutes >= 10:
		return 0.7
	case avgMinutes >= 5:
		return 0.4
	default:
		return 0.1
	}
}

// recencyRisk scales inversely with the time since the most recent event of
// any package. Zero when there is no history.
func recencyRisk(evs []storage.UsageEvent, now time.Time) float64 {
	if len(evs) == 0 {
		return 0
	}
	minutes := minutesSinceLast(evs, now)
	switch {
	case minutes < 5:
		return 1.0
	case minutes < 15:
		return 0.7
	case minutes < 30:
		return 0.4
	default:
		return 0.1
	}
}

// cumulativeRisk scales with total screen-time minutes accumulated since
// local midnight.
func cumulativeRisk(evs []storage.UsageEvent, now time.Time) float64 {
	minutes := todayMinutes(evs, now)
	switch {
	case minutes >= 180:
		return 1.0
	case minutes >= 120:
		return 0.7
	case minutes >= 60:
		return 0.4
	default:
		return 0.1
	}
}

// dayRisk is slightly elevated on weekends. Day numbering starts the week on
// Sunday: 1=Sunday .. 7=Saturday.
func dayRisk(dayOfWeek int) float64 {
	if dayOfWeek == 1 || dayOfWeek == 7 {
		return 0.6
	}
	return 0.4
}

func launchesWithin(evs []storage.UsageEvent, now time.Time, window time.Duration) int {
	cutoffMS := now.Add(-window).UnixMilli()
	count := 0
	for _, e := range evs {
		if e.Timestamp >= cutoffMS {
			count++
		}
	}
	return count
}

func minutesSinceLast(evs []storage.UsageEvent, now time.Time) float64 {
	var lastMS int64 = -1
	for _, e := range evs {
		if e.Timestamp > lastMS {
			lastMS = e.Timestamp
		}
	}
	if lastMS < 0 {
		return 0
	}
	return float64(now.UnixMilli()-lastMS) / float64(time.Minute.Milliseconds())
}

func todayMinutes(evs []storage.UsageEvent, now time.Time) float64 {
	dayStart := events.DayStart(now)
	total := aggregate.TotalScreenTimeSince(evs, dayStart)
	return float64(total) / float64(time.Minute.Milliseconds())
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
