package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/database"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/session"

	_ "github.com/nerrad567/plaf203-core/migrations"
)

var testNow = time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

// openTestStore creates a migrated database in a temp dir.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "plaf203.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	s := NewStore(db)
	s.now = func() time.Time { return testNow }
	return s
}

func intPtr(v int) *int { return &v }

func TestFoodPlansRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	plans, err := s.LoadFoodPlans(ctx)
	if err != nil {
		t.Fatalf("LoadFoodPlans() error = %v", err)
	}
	if len(plans) != 0 {
		t.Fatalf("fresh store has %d plans", len(plans))
	}

	want := []feeding.Plan{
		{ID: 7, Time: protocol.TimeOfDay{Hour: 18, Minute: 0}, Days: protocol.EveryDay, GrainNum: 2},
		{
			ID:          3,
			Time:        protocol.TimeOfDay{Hour: 7, Minute: 45},
			Days:        protocol.NewWeekdaySet(protocol.Monday, protocol.Friday),
			EnableAudio: true,
			AudioTimes:  2,
			GrainNum:    1,
		},
	}
	if err := s.SaveFoodPlans(ctx, want); err != nil {
		t.Fatalf("SaveFoodPlans() error = %v", err)
	}

	got, err := s.LoadFoodPlans(ctx)
	if err != nil {
		t.Fatalf("LoadFoodPlans() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d plans, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("plan %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// A second save replaces the whole set.
	if err := s.SaveFoodPlans(ctx, want[1:]); err != nil {
		t.Fatalf("SaveFoodPlans() error = %v", err)
	}
	got, _ = s.LoadFoodPlans(ctx) //nolint:errcheck // checked above
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("after replace got %+v, want only plan 3", got)
	}
}

func TestSaveFoodPlansRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	good := []feeding.Plan{{ID: 1, Time: protocol.TimeOfDay{Hour: 9}, Days: protocol.EveryDay, GrainNum: 1}}
	if err := s.SaveFoodPlans(ctx, good); err != nil {
		t.Fatalf("SaveFoodPlans() error = %v", err)
	}

	// grain_num 0 violates the CHECK constraint on the second row.
	bad := []feeding.Plan{
		{ID: 2, Time: protocol.TimeOfDay{Hour: 10}, Days: protocol.EveryDay, GrainNum: 1},
		{ID: 3, Time: protocol.TimeOfDay{Hour: 11}, Days: protocol.EveryDay, GrainNum: 0},
	}
	if err := s.SaveFoodPlans(ctx, bad); err == nil {
		t.Fatal("SaveFoodPlans() should fail on an invalid plan")
	}

	got, err := s.LoadFoodPlans(ctx)
	if err != nil {
		t.Fatalf("LoadFoodPlans() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("plans after failed save = %+v, want the original plan", got)
	}
}

func TestManualFeedQuantity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LoadManualFeedQuantity(ctx); err != nil || ok {
		t.Fatalf("LoadManualFeedQuantity() on empty store = ok %v, err %v", ok, err)
	}

	for _, qty := range []int{4, 9} {
		if err := s.SaveManualFeedQuantity(ctx, qty); err != nil {
			t.Fatalf("SaveManualFeedQuantity(%d) error = %v", qty, err)
		}
		got, ok, err := s.LoadManualFeedQuantity(ctx)
		if err != nil || !ok || got != qty {
			t.Errorf("LoadManualFeedQuantity() = %d, %v, %v; want %d", got, ok, err, qty)
		}
	}

	if err := s.SetSetting(ctx, KeyManualFeedQuantity, "lots"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if _, _, err := s.LoadManualFeedQuantity(ctx); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("LoadManualFeedQuantity() error = %v, want ErrInvalidSetting", err)
	}
}

func TestFeedLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []FeedLogEntry{
		{RecordedAt: testNow.Add(-2 * time.Hour), Phase: PhaseStart, OutputType: "FEED_PLAN", PlanID: intPtr(1), Expected: 2},
		{RecordedAt: testNow.Add(-2*time.Hour + time.Minute), Phase: PhaseEnd, OutputType: "FEED_PLAN", PlanID: intPtr(1), Expected: 2, Actual: intPtr(1), Mismatch: true},
		{Phase: PhaseStart, OutputType: "MANUAL_FEED", Expected: 3},
	}
	for i := range entries {
		if err := s.RecordFeed(ctx, &entries[i]); err != nil {
			t.Fatalf("RecordFeed(%d) error = %v", i, err)
		}
		if entries[i].ID == 0 {
			t.Errorf("entry %d has no ID after insert", i)
		}
	}
	if !entries[2].RecordedAt.Equal(testNow) {
		t.Errorf("zero RecordedAt defaulted to %v, want %v", entries[2].RecordedAt, testNow)
	}

	tests := []struct {
		name      string
		filter    FeedLogFilter
		wantTotal int
		wantFirst int64
	}{
		{"all newest first", FeedLogFilter{}, 3, entries[2].ID},
		{"ends only", FeedLogFilter{Phase: PhaseEnd}, 1, entries[1].ID},
		{"since", FeedLogFilter{Since: testNow.Add(-time.Hour)}, 1, entries[2].ID},
		{"paged", FeedLogFilter{Limit: 1, Offset: 1}, 3, entries[1].ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListFeeds(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListFeeds() error = %v", err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", page.Total, tt.wantTotal)
			}
			if len(page.Entries) == 0 || page.Entries[0].ID != tt.wantFirst {
				t.Errorf("first entry = %+v, want id %d", page.Entries, tt.wantFirst)
			}
		})
	}

	page, err := s.ListFeeds(ctx, FeedLogFilter{Phase: PhaseEnd, Limit: 500})
	if err != nil {
		t.Fatalf("ListFeeds() error = %v", err)
	}
	if page.Limit != 200 {
		t.Errorf("Limit = %d, want clamp to 200", page.Limit)
	}
	end := page.Entries[0]
	if end.Actual == nil || *end.Actual != 1 || !end.Mismatch || end.PlanID == nil || *end.PlanID != 1 {
		t.Errorf("end entry = %+v", end)
	}

	removed, err := s.PruneFeeds(ctx, testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneFeeds() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("PruneFeeds() removed %d, want 2", removed)
	}
}

func TestRecordFeedRejectsUnknownPhase(t *testing.T) {
	s := openTestStore(t)
	err := s.RecordFeed(context.Background(), &FeedLogEntry{Phase: "middle", OutputType: "FEED_PLAN", Expected: 1})
	if !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("RecordFeed() error = %v, want ErrInvalidPhase", err)
	}
}

type warnRecorder struct{ warnings int }

func (w *warnRecorder) Warn(string, ...any) { w.warnings++ }

func TestFeedRecorder(t *testing.T) {
	s := openTestStore(t)
	logger := &warnRecorder{}
	rec := NewFeedRecorder(s, logger)

	var _ session.Listener = rec

	events := []session.Event{
		{Kind: session.EventOnline, Serial: "AF01", Time: testNow, Payload: session.OnlineChanged{Online: true}},
		{Kind: session.EventFeedStarted, Serial: "AF01", Time: testNow, Payload: session.FeedStarted{
			Type: protocol.GrainOutputManualFeed, Expected: 2,
		}},
		{Kind: session.EventFeedEnded, Serial: "AF01", Time: testNow.Add(time.Second), Payload: session.FeedEnded{
			Type: protocol.GrainOutputFeedPlan, Actual: 2, Expected: 2, PlanID: intPtr(4),
		}},
	}
	for _, ev := range events {
		rec.HandleEvent(ev)
	}
	if logger.warnings != 0 {
		t.Errorf("recorder logged %d warnings", logger.warnings)
	}

	page, err := s.ListFeeds(context.Background(), FeedLogFilter{})
	if err != nil {
		t.Fatalf("ListFeeds() error = %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("feed log has %d entries, want 2", page.Total)
	}
	end, start := page.Entries[0], page.Entries[1]
	if start.Phase != PhaseStart || start.OutputType != "MANUAL_FEED" || start.Actual != nil {
		t.Errorf("start entry = %+v", start)
	}
	if end.Phase != PhaseEnd || end.Mismatch || end.PlanID == nil || *end.PlanID != 4 {
		t.Errorf("end entry = %+v", end)
	}
}

func TestStoreSatisfiesSession(t *testing.T) {
	var _ session.Store = openTestStore(t)
}
