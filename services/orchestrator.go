package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"game-achievement-system/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RegularBatchSize bounds how many newly-completed rounds one cycle feeds
// through the per-round calculators.
const RegularBatchSize = 1000

// DefaultConcurrency caps simultaneous per-round calculator invocations
// against the shared store.
const DefaultConcurrency = 10

var (
	regularTypes   = []models.AchievementType{models.TypeKillStreak, models.TypeMilestone, models.TypeBadge}
	placementTypes = []models.AchievementType{models.TypePlacement}
	victoryTypes   = []models.AchievementType{models.TypeTeamVictory, models.TypeTeamVictorySwitched}
)

// GamificationService is the incremental orchestrator: it detects
// newly-completed rounds per achievement family, fans the per-round
// calculators out under a bounded semaphore, and pushes the merged candidate
// set through the dedup gate in one batch.
//
// The service is stateless between cycles — watermarks are re-derived from
// the store each time, so a crashed or failed cycle simply retries from the
// same position on the next tick.
type GamificationService struct {
	rounds    RoundSource
	snapshots SnapshotSource

	milestones *MilestoneCalculator
	placements *PlacementProcessor
	victories  *TeamVictoryProcessor
	gate       *DedupGate
	store      AchievementStore

	// Created once per orchestrator instance and shared by every cycle.
	sem         *semaphore.Weighted
	concurrency int64
}

func NewGamificationService(rounds RoundSource, snapshots SnapshotSource, rollups RollupSource, store AchievementStore, concurrency int64) *GamificationService {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &GamificationService{
		rounds:      rounds,
		snapshots:   snapshots,
		milestones:  NewMilestoneCalculator(rollups, store),
		placements:  NewPlacementProcessor(rounds, snapshots),
		victories:   NewTeamVictoryProcessor(rounds, snapshots),
		gate:        NewDedupGate(store),
		store:       store,
		sem:         semaphore.NewWeighted(concurrency),
		concurrency: concurrency,
	}
}

// Milestones exposes the milestone calculator for the admin invalidation
// endpoint.
func (s *GamificationService) Milestones() *MilestoneCalculator {
	return s.milestones
}

// CycleResult summarizes one orchestrator cycle.
type CycleResult struct {
	RoundsProcessed int           `json:"rounds_processed"`
	Candidates      int           `json:"candidates"`
	Inserted        int64         `json:"inserted"`
	FailedRounds    int           `json:"failed_rounds"`
	Duration        time.Duration `json:"-"`
}

// ProcessNewAchievements runs one incremental cycle. Per-round calculator
// failures are absorbed (that round contributes zero achievements); fetch,
// persistence and other cycle-level failures abort the cycle and surface to
// the scheduler, which retries on its next tick.
func (s *GamificationService) ProcessNewAchievements(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	var result CycleResult

	// Three independent watermarks: the families advance separately.
	regularSince := s.readWatermark(ctx, regularTypes)
	placementSince := s.readWatermark(ctx, placementTypes)
	victorySince := s.readWatermark(ctx, victoryTypes)

	// The family passes are independent until the merge, so they run in
	// parallel; any pass failing aborts the cycle before persistence.
	var (
		regular, placements, victories []models.PlayerAchievement
		rounds, failed                 int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regular, rounds, failed, err = s.processRegular(gctx, regularSince)
		return err
	})
	g.Go(func() error {
		var err error
		placements, err = s.placements.ProcessPlacements(gctx, placementSince)
		return err
	})
	g.Go(func() error {
		var err error
		victories, err = s.victories.ProcessTeamVictories(gctx, victorySince)
		return err
	})
	if err := g.Wait(); err != nil {
		result.RoundsProcessed = rounds
		result.FailedRounds = failed
		return result, err
	}
	result.RoundsProcessed = rounds
	result.FailedRounds = failed

	merged := make([]models.PlayerAchievement, 0, len(regular)+len(placements)+len(victories))
	merged = append(merged, regular...)
	merged = append(merged, placements...)
	merged = append(merged, victories...)
	result.Candidates = len(merged)

	if len(merged) > 0 {
		inserted, err := s.gate.PersistBatch(ctx, merged)
		if err != nil {
			return result, err
		}
		result.Inserted = inserted
	}

	result.Duration = time.Since(start)
	log.Printf("✅ [Gamification] Cycle done: %d round(s), %d candidate(s), %d inserted, %d failed round(s) in %s",
		result.RoundsProcessed, result.Candidates, result.Inserted, result.FailedRounds, result.Duration.Round(time.Millisecond))
	return result, nil
}

// readWatermark returns the family's last committed processed_at. A failed
// read falls back to the zero time: reprocessing everything is duplicate-safe
// while skipping a window is a silent gap.
func (s *GamificationService) readWatermark(ctx context.Context, types []models.AchievementType) time.Time {
	wm, err := s.store.MaxProcessedAt(ctx, types)
	if err != nil {
		log.Printf("⚠️ [Gamification] Watermark read failed for %v, reprocessing from the beginning: %v", types, err)
		return time.Time{}
	}
	if wm.IsZero() {
		return wm
	}
	// Rounds can finish while the previous cycle is mid-flight; the lookback
	// keeps them from falling between two watermarks. Duplicates it causes
	// are absorbed by the gate.
	return wm.Add(-DedupTolerance)
}

// processRegular fans the streak and milestone calculators out across the
// newly-completed rounds, one bounded worker per player-round, and joins on
// the full barrier before returning. Rounds are walked in keyset batches so
// a backlog deeper than one batch is drained within the cycle instead of
// falling behind the advancing watermark.
func (s *GamificationService) processRegular(ctx context.Context, since time.Time) ([]models.PlayerAchievement, int, int, error) {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []models.PlayerAchievement
		failures   int
		total      int
	)

	cursor, cursorID := since, ""
	for {
		rounds, err := s.rounds.RoundsEndedSince(ctx, cursor, cursorID, RegularBatchSize)
		if err != nil {
			wg.Wait()
			return nil, total, failures, fmt.Errorf("failed to fetch rounds since %s: %w", cursor.UTC().Format(time.RFC3339), err)
		}
		if len(rounds) == 0 {
			break
		}
		total += len(rounds)

		for _, round := range rounds {
			playerRounds, err := s.buildPlayerRounds(ctx, round)
			if err != nil {
				// One round's session fetch failing must not sink the cycle.
				log.Printf("❌ [Gamification] Skipping round %s: %v", round.ID, err)
				mu.Lock()
				failures++
				mu.Unlock()
				continue
			}

			for _, pr := range playerRounds {
				if err := s.sem.Acquire(ctx, 1); err != nil {
					// Cancelled mid-dispatch: wait for in-flight work, then
					// fail the cycle without persisting anything.
					wg.Wait()
					return nil, total, failures, fmt.Errorf("cycle cancelled while dispatching: %w", err)
				}

				wg.Add(1)
				go func(pr models.PlayerRound) {
					defer wg.Done()
					defer s.sem.Release(1)

					got, err := s.processPlayerRound(ctx, pr)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						log.Printf("❌ [Gamification] Round %s player %s failed, contributing zero achievements: %v", pr.RoundID, pr.PlayerName, err)
						failures++
						return
					}
					candidates = append(candidates, got...)
				}(pr)
			}
		}

		if len(rounds) < RegularBatchSize {
			break
		}
		last := rounds[len(rounds)-1]
		if last.EndTime == nil {
			break
		}
		cursor, cursorID = *last.EndTime, last.ID
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, total, failures, fmt.Errorf("cycle cancelled: %w", err)
	}
	return candidates, total, failures, nil
}

// processPlayerRound runs the per-round calculators for one player. Panics
// are converted to errors so a bad round can never take the worker pool down.
func (s *GamificationService) processPlayerRound(ctx context.Context, pr models.PlayerRound) (got []models.PlayerAchievement, err error) {
	defer func() {
		if r := recover(); r != nil {
			got, err = nil, fmt.Errorf("calculator panic: %v", r)
		}
	}()

	observations, err := s.snapshots.ObservationsForPlayer(ctx, pr.RoundID, pr.PlayerName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observations: %w", err)
	}
	got = append(got, DetectKillStreaks(pr, observations)...)

	milestones, err := s.milestones.CalculateMilestones(ctx, pr)
	if err != nil {
		return nil, err
	}
	got = append(got, milestones...)
	return got, nil
}

// ProcessRound recomputes every achievement family for one completed round.
// Admin-triggered after an upstream data correction; the gate makes it
// duplicate-safe, so reprocessing an already-handled round inserts nothing.
func (s *GamificationService) ProcessRound(ctx context.Context, roundID string) (CycleResult, error) {
	start := time.Now()
	var result CycleResult

	round, err := s.rounds.RoundByID(ctx, roundID)
	if err != nil {
		return result, fmt.Errorf("failed to fetch round %s: %w", roundID, err)
	}
	if round.EndTime == nil {
		return result, fmt.Errorf("round %s has not ended yet", roundID)
	}

	playerRounds, err := s.buildPlayerRounds(ctx, *round)
	if err != nil {
		return result, err
	}

	var candidates []models.PlayerAchievement
	for _, pr := range playerRounds {
		got, err := s.processPlayerRound(ctx, pr)
		if err != nil {
			return result, err
		}
		candidates = append(candidates, got...)
	}

	placements, err := s.placements.processBatch(ctx, []models.Round{*round})
	if err != nil {
		return result, err
	}
	candidates = append(candidates, placements...)

	victories, err := s.victories.processBatch(ctx, []models.Round{*round})
	if err != nil {
		return result, err
	}
	candidates = append(candidates, victories...)

	result.RoundsProcessed = 1
	result.Candidates = len(candidates)
	if len(candidates) > 0 {
		inserted, err := s.gate.PersistBatch(ctx, candidates)
		if err != nil {
			return result, err
		}
		result.Inserted = inserted
	}
	result.Duration = time.Since(start)
	log.Printf("✅ [Gamification] Round %s reprocessed: %d candidate(s), %d inserted", roundID, result.Candidates, result.Inserted)
	return result, nil
}

// buildPlayerRounds derives the ephemeral per-player round summaries from the
// round and its sessions. Bots never earn achievements.
func (s *GamificationService) buildPlayerRounds(ctx context.Context, round models.Round) ([]models.PlayerRound, error) {
	if round.EndTime == nil {
		return nil, nil
	}

	sessions, err := s.snapshots.SessionsForRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	playerRounds := make([]models.PlayerRound, 0, len(sessions))
	for _, sess := range sessions {
		if sess.IsBot {
			continue
		}
		lastSeen := *round.EndTime
		if sess.LastSeenAt != nil {
			lastSeen = *sess.LastSeenAt
		}
		playerRounds = append(playerRounds, models.PlayerRound{
			PlayerName: sess.PlayerName,
			RoundID:    round.ID,
			SessionID:  sess.ID,
			ServerID:   round.ServerID,
			ServerName: round.ServerName,
			MapName:    round.MapName,
			GameID:     round.GameID,
			StartTime:  round.StartTime,
			EndTime:    *round.EndTime,
			Kills:      sess.Kills,
			Deaths:     sess.Deaths,
			Score:      sess.Score,
			PlayTime:   sess.PlayTime,
			TeamLabel:  sess.TeamLabel,
			IsBot:      sess.IsBot,
			LastSeenAt: lastSeen,
		})
	}
	return playerRounds, nil
}
