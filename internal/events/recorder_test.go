package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/taglock/internal/clock"
	"github.com/goodtune/taglock/internal/storage"
	"github.com/goodtune/taglock/internal/storage/bolt"
)

func newTestRecorder(t *testing.T) (*Recorder, storage.Store, *clock.TestClock) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "taglock.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := &clock.TestClock{CurrentTime: time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)}
	return NewRecorder(store.Events(), clk, zerolog.Nop()), store, clk
}

func TestRecordCountsDailyLaunchesPerPackage(t *testing.T) {
	recorder, _, clk := newTestRecorder(t)
	ctx := context.Background()

	// Interleave two packages; each package counts its own launches.
	inputs := []string{
		"com.example.game",
		"com.example.social",
		"com.example.game",
		"com.example.game",
		"com.example.social",
	}
	wantLaunches := []int{1, 1, 2, 3, 2}

	for i, pkg := range inputs {
		clk.CurrentTime = clk.CurrentTime.Add(10 * time.Minute)
		ev, err := recorder.Record(ctx, RecordInput{PackageName: pkg})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if ev.DailyAppLaunches != wantLaunches[i] {
			t.Errorf("launch %d (%s): DailyAppLaunches = %d, want %d",
				i, pkg, ev.DailyAppLaunches, wantLaunches[i])
		}
	}
}

func TestRecordLaunchCountResetsAtMidnight(t *testing.T) {
	recorder, _, clk := newTestRecorder(t)
	ctx := context.Background()

	if _, err := recorder.Record(ctx, RecordInput{PackageName: "com.example.game"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// Next local calendar day.
	clk.CurrentTime = clk.CurrentTime.AddDate(0, 0, 1)
	ev, err := recorder.Record(ctx, RecordInput{PackageName: "com.example.game"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if ev.DailyAppLaunches != 1 {
		t.Errorf("DailyAppLaunches = %d, want 1 after midnight", ev.DailyAppLaunches)
	}
	if ev.TimeSinceLastUseMS != (24 * time.Hour).Milliseconds() {
		t.Errorf("TimeSinceLastUseMS = %d, want %d", ev.TimeSinceLastUseMS, (24*time.Hour).Milliseconds())
	}
}

func TestRecordScreenTimeTotals(t *testing.T) {
	recorder, _, clk := newTestRecorder(t)
	ctx := context.Background()

	if _, err := recorder.Record(ctx, RecordInput{
		PackageName:     "com.example.game",
		SessionDuration: 20 * time.Minute,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	clk.CurrentTime = clk.CurrentTime.Add(time.Hour)
	if _, err := recorder.Record(ctx, RecordInput{
		PackageName:     "com.example.social",
		SessionDuration: 10 * time.Minute,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	clk.CurrentTime = clk.CurrentTime.Add(time.Hour)
	ev, err := recorder.Record(ctx, RecordInput{
		PackageName:     "com.example.game",
		SessionDuration: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// Prior screen time spans all packages, not just this one.
	if ev.TotalDailyScreenTimeMS != (30 * time.Minute).Milliseconds() {
		t.Errorf("TotalDailyScreenTimeMS = %d, want %d", ev.TotalDailyScreenTimeMS, (30*time.Minute).Milliseconds())
	}
	if ev.CumulativeDailyScreenTimeMS != (35 * time.Minute).Milliseconds() {
		t.Errorf("CumulativeDailyScreenTimeMS = %d, want %d", ev.CumulativeDailyScreenTimeMS, (35*time.Minute).Milliseconds())
	}
	if ev.TimeSinceLastUseMS != (2 * time.Hour).Milliseconds() {
		t.Errorf("TimeSinceLastUseMS = %d, want %d", ev.TimeSinceLastUseMS, (2*time.Hour).Milliseconds())
	}
}

func TestRecordFirstUseHasNoGap(t *testing.T) {
	recorder, _, _ := newTestRecorder(t)

	ev, err := recorder.Record(context.Background(), RecordInput{PackageName: "com.example.game"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if ev.TimeSinceLastUseMS != 0 {
		t.Errorf("TimeSinceLastUseMS = %d, want 0 for first use", ev.TimeSinceLastUseMS)
	}
	if ev.DailyAppLaunches != 1 {
		t.Errorf("DailyAppLaunches = %d, want 1", ev.DailyAppLaunches)
	}
}

func TestRecordDerivesTemporalFields(t *testing.T) {
	recorder, _, clk := newTestRecorder(t)

	clk.CurrentTime = time.Date(2025, 1, 5, 22, 30, 0, 0, time.Local) // Sunday
	ev, err := recorder.Record(context.Background(), RecordInput{PackageName: "com.example.game"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if ev.DayOfWeek != 1 {
		t.Errorf("DayOfWeek = %d, want 1 for Sunday", ev.DayOfWeek)
	}
	if ev.HourOfDay != 22 {
		t.Errorf("HourOfDay = %d, want 22", ev.HourOfDay)
	}
	if ev.Category != storage.CategoryOther {
		t.Errorf("Category = %q, want default OTHER", ev.Category)
	}
}

func TestRetentionSchedulerPurge(t *testing.T) {
	recorder, store, clk := newTestRecorder(t)
	ctx := context.Background()

	old := clk.CurrentTime
	if _, err := recorder.Record(ctx, RecordInput{PackageName: "com.example.game"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	clk.CurrentTime = old.AddDate(0, 0, 100)
	if _, err := recorder.Record(ctx, RecordInput{PackageName: "com.example.game"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	scheduler, err := NewRetentionScheduler(store, "03:30", 90, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRetentionScheduler failed: %v", err)
	}
	scheduler.SetClock(clk)
	scheduler.Purge(ctx)

	remaining, err := store.Events().RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("len(remaining) = %d, want 1", len(remaining))
	}
	if remaining[0].Timestamp != clk.CurrentTime.UnixMilli() {
		t.Error("the recent event should survive the purge")
	}
}
