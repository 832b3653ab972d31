package services

import (
	"context"
	"fmt"
	"log"

	"game-achievement-system/models"
)

// MilestoneCalculator detects career-total threshold crossings (kills,
// score, play time) caused by a single completed round.
type MilestoneCalculator struct {
	rollups RollupSource
	store   AchievementStore
}

func NewMilestoneCalculator(rollups RollupSource, store AchievementStore) *MilestoneCalculator {
	return &MilestoneCalculator{rollups: rollups, store: store}
}

// CalculateMilestones fetches the player's pre-round totals from the rollup
// table, adds the round's contribution, and returns one candidate per
// threshold crossed. Candidates are deduplicated within the batch and
// against ids the player already owns.
func (m *MilestoneCalculator) CalculateMilestones(ctx context.Context, round models.PlayerRound) ([]models.PlayerAchievement, error) {
	totals, err := m.rollups.TotalsBefore(ctx, round.PlayerName, round.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to load pre-round totals for %s: %w", round.PlayerName, err)
	}

	candidates := MilestoneCandidates(round, totals)
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = dedupeByID(candidates)

	// Lightweight id-only lookup: at scale, loading full rows per player per
	// round would dominate cycle memory.
	owned, err := m.store.ExistingIDs(ctx, round.PlayerName, []models.AchievementType{models.TypeMilestone})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing milestone ids for %s: %w", round.PlayerName, err)
	}

	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := owned[c.AchievementID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// MilestoneCandidates is the pure crossing check: previous < threshold <= new
// for each configured family. achieved_at is the round end time, which keeps
// the version stamp deterministic across reprocessing.
func MilestoneCandidates(round models.PlayerRound, before models.PlayerTotals) []models.PlayerAchievement {
	var candidates []models.PlayerAchievement

	families := []struct {
		family     string
		previous   int64
		delta      int64
		thresholds []int64
		id         func(int64) string
	}{
		{"kills", before.Kills, int64(round.Kills), models.TotalKillThresholds, models.TotalKillsID},
		{"score", before.Score, round.Score, models.TotalScoreThresholds, models.TotalScoreID},
		{"playtime", before.PlayMinutes, int64(round.PlayTime), hourThresholdsAsMinutes(), playtimeID},
	}

	for _, f := range families {
		newTotal := f.previous + f.delta
		for _, threshold := range f.thresholds {
			if f.previous < threshold && threshold <= newTotal {
				candidates = append(candidates, milestoneAchievement(round, f.family, f.id(threshold), threshold, f.previous, newTotal, f.delta))
			}
		}
	}
	return candidates
}

// Play-time thresholds are configured in hours but rollups count minutes.
func hourThresholdsAsMinutes() []int64 {
	minutes := make([]int64, len(models.PlayHourThresholds))
	for i, h := range models.PlayHourThresholds {
		minutes[i] = h * 60
	}
	return minutes
}

func playtimeID(thresholdMinutes int64) string {
	return models.TotalPlaytimeID(thresholdMinutes / 60)
}

func milestoneAchievement(round models.PlayerRound, family, id string, threshold, previous, newTotal, delta int64) models.PlayerAchievement {
	badge, ok := models.LookupBadge(id)
	if !ok {
		log.Printf("[Milestones] no catalog entry for %s, defaulting tier", id)
		badge = models.BadgeDefinition{ID: id, Name: id, Tier: models.TierBronze}
	}

	a := models.NewAchievement(round.PlayerName, models.TypeMilestone, id, badge.Name, badge.Tier, threshold, round.EndTime)
	a.ServerID = round.ServerID
	a.MapName = round.MapName
	a.RoundID = round.RoundID
	a.GameID = round.GameID
	a.Metadata = marshalMetadata(models.MilestoneMetadata{
		Family:        family,
		Threshold:     threshold,
		PreviousTotal: previous,
		NewTotal:      newTotal,
		RoundDelta:    delta,
	})
	return a
}

// dedupeByID keeps the first candidate per achievement id.
func dedupeByID(candidates []models.PlayerAchievement) []models.PlayerAchievement {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.AchievementID] {
			continue
		}
		seen[c.AchievementID] = true
		out = append(out, c)
	}
	return out
}

// InvalidateMilestones recomputes the player's current rollup totals and
// removes any persisted milestone whose threshold now exceeds them. Used
// after retroactive data correction, e.g. a round being deleted upstream.
func (m *MilestoneCalculator) InvalidateMilestones(ctx context.Context, playerName string) (int64, error) {
	totals, err := m.rollups.CurrentTotals(ctx, playerName)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute totals for %s: %w", playerName, err)
	}

	invalid := InvalidMilestoneIDs(totals)
	if len(invalid) == 0 {
		return 0, nil
	}

	owned, err := m.store.ExistingIDs(ctx, playerName, []models.AchievementType{models.TypeMilestone})
	if err != nil {
		return 0, fmt.Errorf("failed to load existing milestone ids for %s: %w", playerName, err)
	}

	var toDelete []string
	for _, id := range invalid {
		if _, ok := owned[id]; ok {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	removed, err := m.store.DeleteByIDs(ctx, playerName, toDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invalidated milestones for %s: %w", playerName, err)
	}
	if removed > 0 {
		log.Printf("🧹 [Milestones] Removed %d invalidated milestone(s) for %s", removed, playerName)
	}
	return removed, nil
}

// InvalidMilestoneIDs lists every milestone id whose threshold the given
// totals no longer reach.
func InvalidMilestoneIDs(totals models.PlayerTotals) []string {
	var ids []string
	for _, t := range models.TotalKillThresholds {
		if totals.Kills < t {
			ids = append(ids, models.TotalKillsID(t))
		}
	}
	for _, t := range models.TotalScoreThresholds {
		if totals.Score < t {
			ids = append(ids, models.TotalScoreID(t))
		}
	}
	for _, h := range models.PlayHourThresholds {
		if totals.PlayMinutes < h*60 {
			ids = append(ids, models.TotalPlaytimeID(h))
		}
	}
	return ids
}
