package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"game-achievement-system/models"
)

// PlacementBatchSize bounds the working set of one placement pass.
const PlacementBatchSize = 2000

var placementTiers = map[int]models.Tier{
	1: models.TierGold,
	2: models.TierSilver,
	3: models.TierBronze,
}

// PlacementProcessor emits top-3 placement achievements for rounds completed
// since the placement watermark.
type PlacementProcessor struct {
	rounds    RoundSource
	snapshots SnapshotSource
}

func NewPlacementProcessor(rounds RoundSource, snapshots SnapshotSource) *PlacementProcessor {
	return &PlacementProcessor{rounds: rounds, snapshots: snapshots}
}

// ProcessPlacements walks completed rounds in bounded batches. Each batch is
// ranked by one window query, never by per-round queries.
func (p *PlacementProcessor) ProcessPlacements(ctx context.Context, since time.Time) ([]models.PlayerAchievement, error) {
	var all []models.PlayerAchievement
	cursor, cursorID := since, ""

	for {
		batch, err := p.rounds.RoundsEndedSince(ctx, cursor, cursorID, PlacementBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch rounds for placement processing: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		candidates, err := p.processBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)

		if len(batch) < PlacementBatchSize {
			break
		}
		last := batch[len(batch)-1]
		if last.EndTime == nil {
			break
		}
		// Keyset resume at the last round: ties on end_time stay included.
		cursor, cursorID = *last.EndTime, last.ID
	}

	if len(all) > 0 {
		log.Printf("🏅 [Placements] Generated %d placement candidate(s) since %s", len(all), since.UTC().Format(time.RFC3339))
	}
	return all, nil
}

func (p *PlacementProcessor) processBatch(ctx context.Context, batch []models.Round) ([]models.PlayerAchievement, error) {
	roundByID := make(map[string]models.Round, len(batch))
	roundIDs := make([]string, 0, len(batch))
	for _, r := range batch {
		if r.EndTime == nil {
			continue
		}
		roundByID[r.ID] = r
		roundIDs = append(roundIDs, r.ID)
	}
	if len(roundIDs) == 0 {
		return nil, nil
	}

	ranked, err := p.snapshots.RankedSessions(ctx, roundIDs, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to rank sessions for placement batch: %w", err)
	}

	var candidates []models.PlayerAchievement
	for _, row := range ranked {
		round, ok := roundByID[row.RoundID]
		if !ok || row.Rank < 1 || row.Rank > 3 {
			continue
		}
		candidates = append(candidates, placementAchievement(round, row))
	}
	return candidates, nil
}

func placementAchievement(round models.Round, row RankedSession) models.PlayerAchievement {
	id := models.PlacementID(row.Rank)
	badge, ok := models.LookupBadge(id)
	if !ok {
		badge = models.BadgeDefinition{ID: id, Name: id, Tier: placementTiers[row.Rank]}
	}

	a := models.NewAchievement(row.PlayerName, models.TypePlacement, id, badge.Name, badge.Tier, int64(row.Rank), *round.EndTime)
	a.ServerID = round.ServerID
	a.MapName = round.MapName
	a.RoundID = round.ID
	a.GameID = round.GameID
	a.Metadata = marshalMetadata(models.PlacementMetadata{
		Rank:      row.Rank,
		Score:     row.Score,
		Kills:     row.Kills,
		Deaths:    row.Deaths,
		FinalTeam: row.FinalTeam,
	})
	return a
}

// RankRoundSessions is the in-memory reference for the ordering contract the
// window query implements: score desc, kills desc, session id asc. The fake
// stores in tests rank with it, so any divergence from the SQL ordering
// shows up as a test failure rather than silent drift.
func RankRoundSessions(sessions []models.PlayerSession) []RankedSession {
	eligible := make([]models.PlayerSession, 0, len(sessions))
	for _, s := range sessions {
		if !s.IsBot {
			eligible = append(eligible, s)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Score != eligible[j].Score {
			return eligible[i].Score > eligible[j].Score
		}
		if eligible[i].Kills != eligible[j].Kills {
			return eligible[i].Kills > eligible[j].Kills
		}
		return eligible[i].ID < eligible[j].ID
	})

	ranked := make([]RankedSession, len(eligible))
	for i, s := range eligible {
		ranked[i] = RankedSession{
			RoundID:    s.RoundID,
			SessionID:  s.ID,
			PlayerName: s.PlayerName,
			Score:      s.Score,
			Kills:      s.Kills,
			Deaths:     s.Deaths,
			Rank:       i + 1,
			FinalTeam:  s.TeamLabel,
		}
	}
	return ranked
}
