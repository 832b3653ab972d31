package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"game-achievement-system/models"
)

// DedupTolerance is the achieved-at window within which two awards of the
// same repeatable achievement count as the same in-round event. Reprocessing
// a round lands the recomputed award inside this window of the original.
const DedupTolerance = 2 * time.Minute

// DedupGate deduplicates candidate achievements against each other and
// against persisted rows, then performs the idempotent bulk insert. It is
// the only path from candidates to storage.
type DedupGate struct {
	store AchievementStore
}

func NewDedupGate(store AchievementStore) *DedupGate {
	return &DedupGate{store: store}
}

// PersistBatch runs the full gate: in-batch dedup, persisted-row filter,
// insert-or-ignore. Returns the number of rows actually written; the
// store-level uniqueness constraint is the final backstop for anything the
// filters missed.
func (g *DedupGate) PersistBatch(ctx context.Context, candidates []models.PlayerAchievement) (int64, error) {
	candidates = DeduplicateBatch(candidates)
	candidates, err := g.filterPersisted(ctx, candidates)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	inserted, err := g.store.InsertBatch(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to insert achievement batch: %w", err)
	}
	if skipped := int64(len(candidates)) - inserted; skipped > 0 {
		log.Printf("[Dedup] Store ignored %d duplicate row(s) of %d", skipped, len(candidates))
	}
	return inserted, nil
}

// DeduplicateBatch drops in-batch duplicates. Non-repeatable types key on
// (player, achievement id); repeatable types additionally key on the
// achieved-at time bucketed to the tolerance. First candidate wins.
func DeduplicateBatch(candidates []models.PlayerAchievement) []models.PlayerAchievement {
	seen := make(map[string]bool, len(candidates))
	out := make([]models.PlayerAchievement, 0, len(candidates))
	for _, c := range candidates {
		key := c.PlayerName + "|" + c.AchievementID
		if c.AchievementType.Repeatable() {
			bucket := c.AchievedAt.UTC().Unix() / int64(DedupTolerance.Seconds())
			key = fmt.Sprintf("%s|%d", key, bucket)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// filterPersisted removes candidates the player already owns: by id for
// non-repeatable types, by id within the achieved-at tolerance for
// repeatable ones.
func (g *DedupGate) filterPersisted(ctx context.Context, candidates []models.PlayerAchievement) ([]models.PlayerAchievement, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	type playerGroup struct {
		nonRepeatable []int // candidate indexes
		repeatable    map[models.AchievementType][]int
	}
	groups := make(map[string]*playerGroup)
	for i, c := range candidates {
		gp := groups[c.PlayerName]
		if gp == nil {
			gp = &playerGroup{repeatable: make(map[models.AchievementType][]int)}
			groups[c.PlayerName] = gp
		}
		if c.AchievementType.Repeatable() {
			gp.repeatable[c.AchievementType] = append(gp.repeatable[c.AchievementType], i)
		} else {
			gp.nonRepeatable = append(gp.nonRepeatable, i)
		}
	}

	drop := make(map[int]bool)
	for player, gp := range groups {
		if len(gp.nonRepeatable) > 0 {
			types := []models.AchievementType{models.TypeMilestone, models.TypeBadge}
			owned, err := g.store.ExistingIDs(ctx, player, types)
			if err != nil {
				return nil, fmt.Errorf("failed to load existing achievement ids for %s: %w", player, err)
			}
			for _, i := range gp.nonRepeatable {
				if _, ok := owned[candidates[i].AchievementID]; ok {
					drop[i] = true
				}
			}
		}

		for typ, idxs := range gp.repeatable {
			lo, hi := candidates[idxs[0]].AchievedAt, candidates[idxs[0]].AchievedAt
			for _, i := range idxs[1:] {
				if candidates[i].AchievedAt.Before(lo) {
					lo = candidates[i].AchievedAt
				}
				if candidates[i].AchievedAt.After(hi) {
					hi = candidates[i].AchievedAt
				}
			}

			existing, err := g.store.AchievementsInRange(ctx, player, typ, lo.Add(-DedupTolerance), hi.Add(DedupTolerance))
			if err != nil {
				return nil, fmt.Errorf("failed to load recent %s achievements for %s: %w", typ, player, err)
			}
			for _, i := range idxs {
				for _, e := range existing {
					if e.AchievementID != candidates[i].AchievementID {
						continue
					}
					if absDuration(e.AchievedAt.Sub(candidates[i].AchievedAt)) <= DedupTolerance {
						drop[i] = true
						break
					}
				}
			}
		}
	}

	out := make([]models.PlayerAchievement, 0, len(candidates)-len(drop))
	for i, c := range candidates {
		if !drop[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
