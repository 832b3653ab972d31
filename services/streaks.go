package services

import (
	"encoding/json"
	"fmt"
	"log"

	"game-achievement-system/models"
)

// DetectKillStreaks reconstructs kill streaks from a round's ordered
// snapshots and returns one candidate per streak threshold crossed. Pure:
// the caller supplies the observations, ordered by (timestamp, id).
//
// The walk compares consecutive snapshot pairs. A positive kill delta with
// no deaths extends the streak; any death in the interval ends it, and a
// mixed interval (kills and deaths both up) counts as a death — snapshot
// granularity cannot tell which came first, so same-interval kills are
// discarded for streak purposes. Negative deltas mean a counter reset and
// are skipped outright.
func DetectKillStreaks(round models.PlayerRound, observations []models.PlayerObservation) []models.PlayerAchievement {
	if len(observations) < 2 {
		return nil
	}

	var candidates []models.PlayerAchievement
	currentStreak := 0
	credited := make(map[int]bool)

	for i := 1; i < len(observations); i++ {
		prev := observations[i-1]
		next := observations[i]

		killsDelta := next.Kills - prev.Kills
		deathsDelta := next.Deaths - prev.Deaths

		if killsDelta < 0 || deathsDelta < 0 {
			// Non-monotonic counters (session restart or tracker bug);
			// don't let them poison the streak.
			continue
		}

		if deathsDelta > 0 {
			currentStreak = 0
			credited = make(map[int]bool)
			continue
		}

		if killsDelta == 0 {
			continue
		}

		currentStreak += killsDelta
		for _, threshold := range models.KillStreakThresholds {
			if threshold > currentStreak || credited[threshold] {
				continue
			}
			credited[threshold] = true
			candidates = append(candidates, streakAchievement(round, threshold, currentStreak, prev, next))
		}
	}

	return candidates
}

func streakAchievement(round models.PlayerRound, threshold, streakLength int, prev, next models.PlayerObservation) models.PlayerAchievement {
	id := models.KillStreakID(threshold)
	badge, ok := models.LookupBadge(id)
	if !ok {
		log.Printf("[Streaks] no catalog entry for %s, defaulting tier", id)
		badge = models.BadgeDefinition{ID: id, Name: id, Tier: models.TierBronze}
	}

	a := models.NewAchievement(round.PlayerName, models.TypeKillStreak, id, badge.Name, badge.Tier, int64(threshold), next.Timestamp)
	a.ServerID = round.ServerID
	a.MapName = round.MapName
	a.RoundID = round.RoundID
	a.GameID = round.GameID
	a.Metadata = marshalMetadata(models.KillStreakMetadata{
		StreakLength: streakLength,
		Threshold:    threshold,
		SnapshotSpan: fmt.Sprintf("%s..%s", prev.Timestamp.UTC().Format("15:04:05"), next.Timestamp.UTC().Format("15:04:05")),
	})
	return a
}

// marshalMetadata serializes a typed metadata record into the opaque blob
// stored next to the achievement. A marshal failure yields an empty blob
// rather than a failed award.
func marshalMetadata(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️ failed to marshal achievement metadata: %v", err)
		return ""
	}
	return string(b)
}
