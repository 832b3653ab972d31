package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"game-achievement-system/models"
)

const (
	// TeamVictoryBatchSize bounds the rounds handled per aggregate query.
	TeamVictoryBatchSize = 1000

	// EligibilityWindow filters players who disconnected before the round
	// ended: at least one observation must fall inside it.
	EligibilityWindow = 2 * time.Minute
)

// TeamVictoryProcessor awards team-victory achievements for rounds with a
// strict ticket-count winner.
type TeamVictoryProcessor struct {
	rounds    RoundSource
	snapshots SnapshotSource
}

func NewTeamVictoryProcessor(rounds RoundSource, snapshots SnapshotSource) *TeamVictoryProcessor {
	return &TeamVictoryProcessor{rounds: rounds, snapshots: snapshots}
}

// ProcessTeamVictories walks completed rounds since the team-victory
// watermark in batches, one aggregate observation query per batch.
func (p *TeamVictoryProcessor) ProcessTeamVictories(ctx context.Context, since time.Time) ([]models.PlayerAchievement, error) {
	var all []models.PlayerAchievement
	cursor, cursorID := since, ""

	for {
		batch, err := p.rounds.RoundsEndedSince(ctx, cursor, cursorID, TeamVictoryBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch rounds for team-victory processing: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		candidates, err := p.processBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)

		if len(batch) < TeamVictoryBatchSize {
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
		log.Printf("🏆 [TeamVictory] Generated %d victory candidate(s) since %s", len(all), since.UTC().Format(time.RFC3339))
	}
	return all, nil
}

func (p *TeamVictoryProcessor) processBatch(ctx context.Context, batch []models.Round) ([]models.PlayerAchievement, error) {
	roundIDs := make([]string, 0, len(batch))
	roundByID := make(map[string]models.Round, len(batch))
	for _, r := range batch {
		if !r.HasWinner() || r.EndTime == nil {
			// Draws and unfinished rounds produce nothing; a later data
			// correction that breaks the tie gets picked up by normal
			// reprocessing.
			continue
		}
		roundIDs = append(roundIDs, r.ID)
		roundByID[r.ID] = r
	}
	if len(roundIDs) == 0 {
		return nil, nil
	}

	stats, err := p.snapshots.TeamObservationStats(ctx, roundIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate team observations: %w", err)
	}

	statsByRound := make(map[string][]SessionTeamStats)
	for _, s := range stats {
		statsByRound[s.RoundID] = append(statsByRound[s.RoundID], s)
	}

	var candidates []models.PlayerAchievement
	for roundID, roundStats := range statsByRound {
		round := roundByID[roundID]
		candidates = append(candidates, ScoreRoundVictory(round, roundStats)...)
	}
	return candidates, nil
}

// ScoreRoundVictory applies the contribution-weighted tier rules for one
// round. Pure: the caller supplies the per-session aggregates.
//
// finalScore = contributionScore * teamParticipationRatio, where the
// contribution score is the player's winning-team observation count relative
// to the winners' median (floored at 1 to avoid division blowup) and the
// participation ratio is the loyalty factor — the fraction of the player's
// observations spent on the winning team.
func ScoreRoundVictory(round models.Round, stats []SessionTeamStats) []models.PlayerAchievement {
	winner := round.WinningTeam()
	if winner == 0 || round.EndTime == nil {
		return nil
	}
	roundEnd := *round.EndTime

	var winners, switched []SessionTeamStats
	for _, s := range stats {
		if s.TotalObs == 0 || s.LastSeenAt.Before(roundEnd.Add(-EligibilityWindow)) {
			continue // disconnected before the end
		}
		switch {
		case s.FinalTeam == winner:
			winners = append(winners, s)
		case s.Switched() && s.MajorityTeam() == winner:
			switched = append(switched, s)
		}
	}
	if len(winners) == 0 && len(switched) == 0 {
		return nil
	}

	med := medianWinningObs(winners, winner)
	if med < 1 {
		med = 1
	}

	var out []models.PlayerAchievement
	for _, s := range winners {
		out = append(out, victoryAchievement(round, s, winner, med, false))
	}
	for _, s := range switched {
		out = append(out, victoryAchievement(round, s, winner, med, true))
	}
	return out
}

func victoryAchievement(round models.Round, s SessionTeamStats, winner int, median float64, wasSwitched bool) models.PlayerAchievement {
	obsOnWinning := s.Team1Obs
	if winner == 2 {
		obsOnWinning = s.Team2Obs
	}

	ratio := float64(obsOnWinning) / float64(s.TotalObs)
	contribution := float64(obsOnWinning) / median
	finalScore := contribution * ratio

	typ := models.TypeTeamVictory
	id := models.TeamVictoryID
	tier := regularVictoryTier(finalScore)
	if wasSwitched {
		typ = models.TypeTeamVictorySwitched
		id = models.TeamVictorySwitchedID
		tier = switchedVictoryTier(finalScore)
	}

	badge, ok := models.LookupBadge(id)
	if !ok {
		badge = models.BadgeDefinition{ID: id, Name: id}
	}

	achievedAt := *round.EndTime
	if achievedAt.IsZero() {
		achievedAt = s.LastSeenAt
	}

	winLabel, loseLabel := round.Team1Label, round.Team2Label
	winTickets, loseTickets := valueOrZero(round.Tickets1), valueOrZero(round.Tickets2)
	if winner == 2 {
		winLabel, loseLabel = loseLabel, winLabel
		winTickets, loseTickets = loseTickets, winTickets
	}

	a := models.NewAchievement(s.PlayerName, typ, id, badge.Name, tier, int64(math.Round(finalScore*100)), achievedAt)
	a.ServerID = round.ServerID
	a.MapName = round.MapName
	a.RoundID = round.ID
	a.GameID = round.GameID
	a.Metadata = marshalMetadata(models.TeamVictoryMetadata{
		WinningTeam:        winLabel,
		LosingTeam:         loseLabel,
		WinnerTickets:      winTickets,
		LoserTickets:       loseTickets,
		ServerName:         round.ServerName,
		Score:              s.Score,
		Kills:              s.Kills,
		Deaths:             s.Deaths,
		ParticipationRatio: ratio,
		ContributionScore:  contribution,
		Switched:           wasSwitched,
	})
	return a
}

func regularVictoryTier(finalScore float64) models.Tier {
	switch {
	case finalScore >= 1.2:
		return models.TierLegend
	case finalScore >= 1.0:
		return models.TierGold
	case finalScore >= 0.7:
		return models.TierSilver
	default:
		return models.TierBronze // floor: everyone eligible gets at least bronze
	}
}

func switchedVictoryTier(finalScore float64) models.Tier {
	switch {
	case finalScore >= 1.0:
		return models.TierGold
	case finalScore >= 0.7:
		return models.TierSilver
	default:
		return models.TierBronze
	}
}

func medianWinningObs(winners []SessionTeamStats, winner int) float64 {
	if len(winners) == 0 {
		return 0
	}
	counts := make([]int, 0, len(winners))
	for _, s := range winners {
		obs := s.Team1Obs
		if winner == 2 {
			obs = s.Team2Obs
		}
		counts = append(counts, obs)
	}
	sort.Ints(counts)
	mid := len(counts) / 2
	if len(counts)%2 == 1 {
		return float64(counts[mid])
	}
	return float64(counts[mid-1]+counts[mid]) / 2
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
