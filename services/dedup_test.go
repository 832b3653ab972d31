package services

import (
	"context"
	"testing"
	"time"

	"game-achievement-system/models"
)

func milestoneCandidate(player string, achievedAt time.Time) models.PlayerAchievement {
	return models.NewAchievement(player, models.TypeMilestone, models.TotalKillsID(100), "100 Total Kills", models.TierBronze, 100, achievedAt)
}

func streakCandidate(player string, achievedAt time.Time) models.PlayerAchievement {
	return models.NewAchievement(player, models.TypeKillStreak, models.KillStreakID(5), "5 Kill Streak", models.TierBronze, 5, achievedAt)
}

func TestDeduplicateBatchCollapsesNonRepeatableByID(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	// Two rounds in the same cycle both crossing the same milestone: the
	// achieved-at times differ but the id must win only once.
	batch := []models.PlayerAchievement{
		milestoneCandidate("Alice", at),
		milestoneCandidate("Alice", at.Add(20*time.Minute)),
	}

	got := DeduplicateBatch(batch)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if !got[0].AchievedAt.Equal(at) {
		t.Error("first candidate must win")
	}
}

func TestDeduplicateBatchKeepsDistinctPlayers(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	batch := []models.PlayerAchievement{
		milestoneCandidate("Alice", at),
		milestoneCandidate("Bob", at),
	}
	if got := DeduplicateBatch(batch); len(got) != 2 {
		t.Errorf("same id for different players must both survive, got %d", len(got))
	}
}

func TestDeduplicateBatchRepeatableKeysOnTimeBucket(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	same := []models.PlayerAchievement{
		streakCandidate("Alice", at),
		streakCandidate("Alice", at),
	}
	if got := DeduplicateBatch(same); len(got) != 1 {
		t.Errorf("identical repeatable candidates must collapse, got %d", len(got))
	}

	apart := []models.PlayerAchievement{
		streakCandidate("Alice", at),
		streakCandidate("Alice", at.Add(20*time.Minute)),
	}
	if got := DeduplicateBatch(apart); got == nil || len(got) != 2 {
		t.Errorf("re-earned streaks well apart must both survive, got %d", len(got))
	}
}

func TestPersistBatchFiltersAlreadyPersistedRows(t *testing.T) {
	ctx := context.Background()
	store := &fakeAchievementStore{}
	gate := NewDedupGate(store)

	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	seed := []models.PlayerAchievement{
		milestoneCandidate("Alice", at),
		streakCandidate("Alice", at),
	}
	if _, err := store.InsertBatch(ctx, seed); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	batch := []models.PlayerAchievement{
		// Reprocessing artifacts: the same milestone, and the same streak
		// recomputed 30s off the original.
		milestoneCandidate("Alice", at.Add(time.Hour)),
		streakCandidate("Alice", at.Add(30*time.Second)),
		// Genuinely new work.
		streakCandidate("Alice", at.Add(time.Hour)),
		milestoneCandidate("Bob", at),
	}

	inserted, err := gate.PersistBatch(ctx, batch)
	if err != nil {
		t.Fatalf("PersistBatch failed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want only the new streak and Bob's milestone", inserted)
	}
	if len(store.rows) != 4 {
		t.Errorf("store holds %d rows, want 4", len(store.rows))
	}
}

func TestPersistBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &fakeAchievementStore{}
	gate := NewDedupGate(store)

	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	batch := []models.PlayerAchievement{
		milestoneCandidate("Alice", at),
		streakCandidate("Alice", at),
	}

	first, err := gate.PersistBatch(ctx, batch)
	if err != nil {
		t.Fatalf("first persist failed: %v", err)
	}
	if first != 2 {
		t.Fatalf("first persist inserted %d, want 2", first)
	}

	second, err := gate.PersistBatch(ctx, batch)
	if err != nil {
		t.Fatalf("second persist failed: %v", err)
	}
	if second != 0 {
		t.Errorf("second persist inserted %d, want 0", second)
	}
}

func TestPersistBatchEmptyInput(t *testing.T) {
	gate := NewDedupGate(&fakeAchievementStore{})
	inserted, err := gate.PersistBatch(context.Background(), nil)
	if err != nil || inserted != 0 {
		t.Errorf("empty batch: inserted=%d err=%v, want 0 and nil", inserted, err)
	}
}
