package services

import (
	"testing"
	"time"

	"game-achievement-system/models"
)

var streakRound = models.PlayerRound{
	PlayerName: "Alice",
	RoundID:    "round-1",
	ServerID:   "server-1",
	MapName:    "dust_plains",
	GameID:     "bf",
}

func obs(at time.Time, kills, deaths int) models.PlayerObservation {
	return models.PlayerObservation{Timestamp: at, Kills: kills, Deaths: deaths}
}

func streakIDs(got []models.PlayerAchievement) []string {
	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.AchievementID
	}
	return ids
}

func TestDetectKillStreaksCreditsThresholdsAtCrossingSnapshot(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(1*time.Minute), 5, 0),
		obs(base.Add(2*time.Minute), 10, 0),
		obs(base.Add(3*time.Minute), 10, 1),
		obs(base.Add(4*time.Minute), 15, 1),
	}

	got := DetectKillStreaks(streakRound, snapshots)
	if len(got) != 3 {
		t.Fatalf("got %d candidates %v, want 3", len(got), streakIDs(got))
	}

	if got[0].AchievementID != models.KillStreakID(5) {
		t.Errorf("first candidate id = %s, want %s", got[0].AchievementID, models.KillStreakID(5))
	}
	if !got[0].AchievedAt.Equal(base.Add(1 * time.Minute)) {
		t.Errorf("threshold-5 achieved_at = %s, want the crossing snapshot time", got[0].AchievedAt)
	}

	if got[1].AchievementID != models.KillStreakID(10) {
		t.Errorf("second candidate id = %s, want %s", got[1].AchievementID, models.KillStreakID(10))
	}
	if !got[1].AchievedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("threshold-10 achieved_at = %s, want the crossing snapshot time", got[1].AchievedAt)
	}

	// The death at t3 ended the streak. The 5 kills before t4 start a fresh
	// one that reaches 5, so threshold 5 is earned again — but the cumulative
	// 15 kills must not credit threshold 15.
	if got[2].AchievementID != models.KillStreakID(5) {
		t.Errorf("third candidate id = %s, want a re-earned %s", got[2].AchievementID, models.KillStreakID(5))
	}
	if !got[2].AchievedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("re-earned threshold-5 achieved_at = %s, want t4", got[2].AchievedAt)
	}
}

func TestDetectKillStreaksDeathResetsStreakAndCredit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(1*time.Minute), 6, 0),  // streak 6 -> threshold 5
		obs(base.Add(2*time.Minute), 6, 1),  // death, reset
		obs(base.Add(3*time.Minute), 12, 1), // new streak 6 -> threshold 5 again
	}

	got := DetectKillStreaks(streakRound, snapshots)
	if len(got) != 2 {
		t.Fatalf("got candidates %v, want threshold-5 twice", streakIDs(got))
	}
	for _, a := range got {
		if a.AchievementID != models.KillStreakID(5) {
			t.Errorf("unexpected candidate %s", a.AchievementID)
		}
	}
	if got[0].AchievedAt.Equal(got[1].AchievedAt) {
		t.Error("re-earned streak must carry a distinct achieved_at")
	}
	if got[0].Version == got[1].Version {
		t.Error("re-earned streak must carry a distinct version stamp")
	}
}

func TestDetectKillStreaksMixedIntervalCountsAsDeath(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(1*time.Minute), 4, 0),
		// Kills and deaths both advanced: ordering unknown, interval discarded.
		obs(base.Add(2*time.Minute), 9, 1),
		obs(base.Add(3*time.Minute), 12, 1), // streak restarts: only 3 kills
	}

	if got := DetectKillStreaks(streakRound, snapshots); len(got) != 0 {
		t.Errorf("mixed interval must discard its kills, got %v", streakIDs(got))
	}
}

func TestDetectKillStreaksSkipsNonMonotonicCounters(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(1*time.Minute), 3, 0),
		obs(base.Add(2*time.Minute), 0, 0), // counter reset, skipped
		obs(base.Add(3*time.Minute), 3, 0), // +3 from the reset point
	}

	got := DetectKillStreaks(streakRound, snapshots)
	if len(got) != 1 || got[0].AchievementID != models.KillStreakID(5) {
		t.Errorf("streak across the reset should be 3+3=6 crediting threshold 5, got %v", streakIDs(got))
	}
}

func TestDetectKillStreaksBigDeltaCreditsMultipleThresholds(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(5*time.Minute), 17, 0),
	}

	got := DetectKillStreaks(streakRound, snapshots)
	want := map[string]bool{
		models.KillStreakID(5):  true,
		models.KillStreakID(10): true,
		models.KillStreakID(15): true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want thresholds 5, 10 and 15", streakIDs(got))
	}
	for _, a := range got {
		if !want[a.AchievementID] {
			t.Errorf("unexpected candidate %s", a.AchievementID)
		}
		if !a.AchievedAt.Equal(base.Add(5 * time.Minute)) {
			t.Errorf("%s achieved_at = %s, want the crossing snapshot time", a.AchievementID, a.AchievedAt)
		}
	}
}

func TestDetectKillStreaksNeedsAtLeastTwoSnapshots(t *testing.T) {
	if got := DetectKillStreaks(streakRound, nil); got != nil {
		t.Errorf("no snapshots: got %v, want nil", streakIDs(got))
	}
	single := []models.PlayerObservation{obs(time.Now(), 25, 0)}
	if got := DetectKillStreaks(streakRound, single); got != nil {
		t.Errorf("single snapshot: got %v, want nil", streakIDs(got))
	}
}

func TestDetectKillStreaksCarriesRoundContext(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshots := []models.PlayerObservation{
		obs(base, 0, 0),
		obs(base.Add(1*time.Minute), 5, 0),
	}

	got := DetectKillStreaks(streakRound, snapshots)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	a := got[0]
	if a.PlayerName != "Alice" || a.RoundID != "round-1" || a.ServerID != "server-1" || a.MapName != "dust_plains" {
		t.Errorf("round context not carried: %+v", a)
	}
	if a.AchievementType != models.TypeKillStreak {
		t.Errorf("type = %s, want %s", a.AchievementType, models.TypeKillStreak)
	}
	if a.Version != models.VersionFor(a.AchievedAt) {
		t.Errorf("version = %d, want %d", a.Version, models.VersionFor(a.AchievedAt))
	}
}
