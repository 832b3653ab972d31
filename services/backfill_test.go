package services

import (
	"context"
	"testing"
	"time"

	"game-achievement-system/models"
)

type fakeBackfillSource struct {
	crossings []MilestoneCrossing
	spans     []StreakSpan
}

func (f *fakeBackfillSource) MilestoneCrossings(_ context.Context, from, to time.Time) ([]MilestoneCrossing, error) {
	var out []MilestoneCrossing
	for _, c := range f.crossings {
		if !c.CrossedAt.Before(from) && c.CrossedAt.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackfillSource) StreakSpans(_ context.Context, from, to time.Time) ([]StreakSpan, error) {
	var out []StreakSpan
	for _, s := range f.spans {
		if !s.EndTime.Before(from) && s.EndTime.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestMonthChunks(t *testing.T) {
	from := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	chunks := MonthChunks(from, to)
	want := []Chunk{
		{From: from, To: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), To: to},
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, w := range want {
		if !chunks[i].From.Equal(w.From) || !chunks[i].To.Equal(w.To) {
			t.Errorf("chunk %d = [%s, %s), want [%s, %s)", i, chunks[i].From, chunks[i].To, w.From, w.To)
		}
	}
}

func TestMonthChunksSingleMonth(t *testing.T) {
	from := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	chunks := MonthChunks(from, to)
	if len(chunks) != 1 || !chunks[0].From.Equal(from) || !chunks[0].To.Equal(to) {
		t.Errorf("window inside one month must be a single chunk, got %+v", chunks)
	}
}

func TestMonthChunksEmptyWindow(t *testing.T) {
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	if chunks := MonthChunks(at, at); len(chunks) != 0 {
		t.Errorf("from == to must yield no chunks, got %d", len(chunks))
	}
}

func TestStreakSpanAchievementsInterpolation(t *testing.T) {
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	span := StreakSpan{
		PlayerName: "Alice",
		ServerID:   "server-1",
		MapName:    "dust_plains",
		GameID:     "bf",
		StartTime:  start,
		EndTime:    start.Add(12 * time.Minute),
		Kills:      12,
	}

	got := StreakSpanAchievements(span)
	if len(got) != 2 {
		t.Fatalf("12-kill span crosses thresholds 5 and 10, got %d", len(got))
	}

	// Crossings are spread linearly over the span's wall-clock duration.
	if want := start.Add(5 * time.Minute); !got[0].AchievedAt.Equal(want) {
		t.Errorf("threshold-5 achieved_at = %s, want %s", got[0].AchievedAt, want)
	}
	if want := start.Add(10 * time.Minute); !got[1].AchievedAt.Equal(want) {
		t.Errorf("threshold-10 achieved_at = %s, want %s", got[1].AchievedAt, want)
	}
	for _, a := range got {
		if a.Version != models.VersionFor(a.AchievedAt) {
			t.Errorf("%s version not derived from achieved_at", a.AchievementID)
		}
	}
}

func TestStreakSpanAchievementsBelowSmallestThreshold(t *testing.T) {
	span := StreakSpan{PlayerName: "Alice", StartTime: time.Now(), EndTime: time.Now().Add(time.Minute), Kills: 4}
	if got := StreakSpanAchievements(span); got != nil {
		t.Errorf("4-kill span must award nothing, got %d", len(got))
	}
}

func TestRunBackfillAcrossChunks(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	source := &fakeBackfillSource{
		crossings: []MilestoneCrossing{
			{
				PlayerName: "Alice", Family: "kills", Threshold: 100,
				PreviousTotal: 95, NewTotal: 107,
				RoundID: "r-feb", CrossedAt: time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC),
			},
			{
				PlayerName: "Alice", Family: "playtime", Threshold: 600, // minutes
				PreviousTotal: 570, NewTotal: 620,
				RoundID: "r-jan", CrossedAt: time.Date(2026, 1, 20, 18, 0, 0, 0, time.UTC),
			},
		},
		spans: []StreakSpan{
			{
				PlayerName: "Alice",
				StartTime:  time.Date(2026, 1, 12, 20, 0, 0, 0, time.UTC),
				EndTime:    time.Date(2026, 1, 12, 20, 10, 0, 0, time.UTC),
				Kills:      7,
			},
		},
	}
	store := &fakeAchievementStore{}

	p := NewHistoricalBackfillProcessor(source, store)
	report, err := p.RunBackfill(context.Background(), from, to)
	if err != nil {
		t.Fatalf("RunBackfill failed: %v", err)
	}

	if report.Candidates != 3 || report.Inserted != 3 {
		t.Fatalf("candidates=%d inserted=%d, want 3 and 3", report.Candidates, report.Inserted)
	}
	if len(report.Chunks) != 2 {
		t.Fatalf("got %d chunk stats, want 2", len(report.Chunks))
	}
	if report.Chunks[0].Milestones != 1 || report.Chunks[0].Streaks != 1 {
		t.Errorf("January chunk = %+v, want 1 milestone and 1 streak", report.Chunks[0])
	}
	if report.Chunks[1].Milestones != 1 || report.Chunks[1].Streaks != 0 {
		t.Errorf("February chunk = %+v, want 1 milestone only", report.Chunks[1])
	}

	byID := map[string]bool{}
	for _, r := range store.rows {
		byID[r.AchievementID] = true
	}
	for _, id := range []string{models.TotalKillsID(100), models.TotalPlaytimeID(10), models.KillStreakID(5)} {
		if !byID[id] {
			t.Errorf("missing backfilled achievement %s", id)
		}
	}
}

func TestRunBackfillChunkOverlapDoesNotDoubleCount(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// The span ends inside the one-day lead of the February chunk, so both
	// chunk queries return it; only January may award it.
	source := &fakeBackfillSource{
		spans: []StreakSpan{
			{
				PlayerName: "Alice",
				StartTime:  time.Date(2026, 1, 31, 11, 50, 0, 0, time.UTC),
				EndTime:    time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC),
				Kills:      6,
			},
		},
	}
	store := &fakeAchievementStore{}

	p := NewHistoricalBackfillProcessor(source, store)
	report, err := p.RunBackfill(context.Background(), from, to)
	if err != nil {
		t.Fatalf("RunBackfill failed: %v", err)
	}
	if report.Candidates != 1 || report.Inserted != 1 {
		t.Errorf("candidates=%d inserted=%d, want the straddling span counted once", report.Candidates, report.Inserted)
	}
}

func TestRunBackfillSkipsExistingAchievements(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	source := &fakeBackfillSource{
		crossings: []MilestoneCrossing{
			{
				PlayerName: "Alice", Family: "kills", Threshold: 100,
				PreviousTotal: 95, NewTotal: 107,
				CrossedAt: time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC),
			},
		},
	}
	store := &fakeAchievementStore{}
	seed := models.NewAchievement("Alice", models.TypeMilestone, models.TotalKillsID(100), "100 Total Kills", models.TierBronze, 100, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	if _, err := store.InsertBatch(context.Background(), []models.PlayerAchievement{seed}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	p := NewHistoricalBackfillProcessor(source, store)
	report, err := p.RunBackfill(context.Background(), from, to)
	if err != nil {
		t.Fatalf("RunBackfill failed: %v", err)
	}
	if report.Candidates != 0 || report.Inserted != 0 {
		t.Errorf("candidates=%d inserted=%d, want the owned milestone skipped", report.Candidates, report.Inserted)
	}
}

func TestRunBackfillRejectsInvertedWindow(t *testing.T) {
	p := NewHistoricalBackfillProcessor(&fakeBackfillSource{}, &fakeAchievementStore{})
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := p.RunBackfill(context.Background(), at, at); err == nil {
		t.Error("from == to must be rejected")
	}
}
