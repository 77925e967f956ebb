package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AppCategory classifies an application for risk scoring.
type AppCategory string

const (
	CategoryGame         AppCategory = "GAME"
	CategoryNews         AppCategory = "NEWS"
	CategoryOther        AppCategory = "OTHER"
	CategoryProductivity AppCategory = "PRODUCTIVITY"
	CategorySocial       AppCategory = "SOCIAL"
	CategoryVideo        AppCategory = "VIDEO"
	CategoryBlocked      AppCategory = "BLOCKED"
)

// UnmarshalJSON implements json.Unmarshaler to normalize categories to uppercase.
func (c *AppCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := AppCategory(strings.ToUpper(s))

	switch normalized {
	case CategoryGame, CategoryNews, CategoryOther, CategoryProductivity,
		CategorySocial, CategoryVideo, CategoryBlocked:
		*c = normalized
		return nil
	default:
		return fmt.Errorf("invalid app category: %s", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (c AppCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// UsageEvent is one observed block-relevant occurrence. Events are immutable
// once appended; IDs are store-assigned and strictly increasing in insertion
// order.
type UsageEvent struct {
	ID                          uint64      `json:"id"`
	Timestamp                   int64       `json:"timestamp"`   // epoch milliseconds
	DayOfWeek                   int         `json:"day_of_week"` // 1=Sunday .. 7=Saturday
	HourOfDay                   int         `json:"hour_of_day"` // 0..23
	PackageName                 string      `json:"package_name"`
	AppName                     string      `json:"app_name"`
	Category                    AppCategory `json:"category"`
	SessionDurationMS           int64       `json:"session_duration_ms"`
	TimeSinceLastUseMS          int64       `json:"time_since_last_use_ms"`
	DailyAppLaunches            int         `json:"daily_app_launches"`
	TotalDailyScreenTimeMS      int64       `json:"total_daily_screen_time_ms"`
	CumulativeDailyScreenTimeMS int64       `json:"cumulative_daily_screen_time_ms"`
	WasBlocked                  bool        `json:"was_blocked"`
	UnlockAttempted             bool        `json:"unlock_attempted"`
	UnlockSucceeded             bool        `json:"unlock_succeeded"`
	RiskScore                   float64     `json:"risk_score"`
}

// Time returns the event timestamp as a time.Time.
func (e UsageEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// BlockedApp is the per-package block configuration. Absence of a record
// means the package is not blocked.
type BlockedApp struct {
	PackageName string      `json:"package_name"`
	AppName     string      `json:"app_name"`
	Category    AppCategory `json:"category"`
	IsBlocked   bool        `json:"is_blocked"`
	AddedAt     time.Time   `json:"added_at"`
}

// BlockingSession is one contiguous interval during which the lock was
// engaged. A nil EndTime means the session is currently open; at most one
// session may be open at any time.
type BlockingSession struct {
	ID           uint64     `json:"id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	UnlockMethod string     `json:"unlock_method,omitempty"`
	DurationMS   *int64     `json:"duration_ms,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s BlockingSession) Open() bool {
	return s.EndTime == nil
}

// PairedToken is the single physical token whose identifier gates unlock.
// Pairing replaces any previous token unconditionally.
type PairedToken struct {
	TokenID  string    `json:"token_id"`
	PairedAt time.Time `json:"paired_at"`
}
