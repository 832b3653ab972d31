package models

import (
	"fmt"

	"github.com/gosimple/slug"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BadgeDefinition: static catalog entry. Immutable after process start.
type BadgeDefinition struct {
	ID           string           `json:"id"`   // stable key, e.g. "kill_streak_15"
	Slug         string           `json:"slug"` // URL-safe form of the name
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Tier         Tier             `json:"tier"`
	Category     Category         `json:"category"`
	Requirements map[string]int64 `json:"requirements"`
}

// Threshold tables shared by the incremental and backfill paths. These are
// the single source of truth — calculators must not carry their own copies.
var (
	KillStreakThresholds = []int{5, 10, 15, 20, 25, 30, 50}
	TotalKillThresholds  = []int64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000}
	PlayHourThresholds   = []int64{10, 50, 100, 500, 1000}
	TotalScoreThresholds = []int64{10000, 50000, 100000, 500000, 1000000}
)

// Deterministic achievement id builders. Milestone ids embed the threshold
// so the same crossing always maps to the same catalog entry.
func KillStreakID(threshold int) string   { return fmt.Sprintf("kill_streak_%d", threshold) }
func TotalKillsID(threshold int64) string { return fmt.Sprintf("total_kills_%d", threshold) }
func TotalPlaytimeID(hours int64) string  { return fmt.Sprintf("total_playtime_%dh", hours) }
func TotalScoreID(threshold int64) string { return fmt.Sprintf("total_score_%d", threshold) }
func PlacementID(rank int) string         { return fmt.Sprintf("round_placement_%d", rank) }

const (
	TeamVictoryID         = "team_victory"
	TeamVictorySwitchedID = "team_victory_switched"
)

// BadgeCatalog is the full static definition set, generated once at init.
var (
	BadgeCatalog     []BadgeDefinition
	BadgeByID        map[string]BadgeDefinition
	BadgesByCategory map[Category][]BadgeDefinition
)

var display = message.NewPrinter(language.English)

func init() {
	streakTiers := map[int]Tier{5: TierBronze, 10: TierBronze, 15: TierSilver, 20: TierSilver, 25: TierGold, 30: TierGold, 50: TierLegend}
	for _, t := range KillStreakThresholds {
		BadgeCatalog = append(BadgeCatalog, newBadge(
			KillStreakID(t),
			display.Sprintf("%d Kill Streak", t),
			display.Sprintf("Scored %d kills in a single round without dying", t),
			streakTiers[t], CategoryCombat,
			map[string]int64{"streak_length": int64(t)},
		))
	}

	killTiers := map[int64]Tier{100: TierBronze, 500: TierBronze, 1000: TierSilver, 2500: TierSilver, 5000: TierGold, 10000: TierGold, 25000: TierLegend, 50000: TierLegend}
	for _, t := range TotalKillThresholds {
		BadgeCatalog = append(BadgeCatalog, newBadge(
			TotalKillsID(t),
			display.Sprintf("%d Total Kills", t),
			display.Sprintf("Reached %d career kills", t),
			killTiers[t], CategoryProgression,
			map[string]int64{"total_kills": t},
		))
	}

	hourTiers := map[int64]Tier{10: TierBronze, 50: TierSilver, 100: TierSilver, 500: TierGold, 1000: TierLegend}
	for _, t := range PlayHourThresholds {
		BadgeCatalog = append(BadgeCatalog, newBadge(
			TotalPlaytimeID(t),
			display.Sprintf("%d Hours Played", t),
			display.Sprintf("Accumulated %d hours of play time", t),
			hourTiers[t], CategoryProgression,
			map[string]int64{"play_minutes": t * 60},
		))
	}

	scoreTiers := map[int64]Tier{10000: TierBronze, 50000: TierSilver, 100000: TierSilver, 500000: TierGold, 1000000: TierLegend}
	for _, t := range TotalScoreThresholds {
		BadgeCatalog = append(BadgeCatalog, newBadge(
			TotalScoreID(t),
			display.Sprintf("%d Total Score", t),
			display.Sprintf("Reached %d career score points", t),
			scoreTiers[t], CategoryProgression,
			map[string]int64{"total_score": t},
		))
	}

	placements := []struct {
		rank int
		tier Tier
		name string
	}{
		{1, TierGold, "Round Winner"},
		{2, TierSilver, "Round Runner-Up"},
		{3, TierBronze, "Round Third Place"},
	}
	for _, p := range placements {
		BadgeCatalog = append(BadgeCatalog, newBadge(
			PlacementID(p.rank),
			p.name,
			display.Sprintf("Finished a round ranked #%d by score", p.rank),
			p.tier, CategoryPerformance,
			map[string]int64{"rank": int64(p.rank)},
		))
	}

	BadgeCatalog = append(BadgeCatalog,
		newBadge(TeamVictoryID, "Team Victory",
			"Was on the winning team when the round ended",
			TierBronze, CategoryTeamplay,
			map[string]int64{"min_contribution": 0}),
		newBadge(TeamVictorySwitchedID, "Switched-Side Victory",
			"Carried the winning team for most of the round but finished on the other side",
			TierBronze, CategoryTeamplay,
			map[string]int64{"switched": 1}),
	)

	BadgeByID = make(map[string]BadgeDefinition, len(BadgeCatalog))
	BadgesByCategory = make(map[Category][]BadgeDefinition)
	for _, b := range BadgeCatalog {
		BadgeByID[b.ID] = b
		BadgesByCategory[b.Category] = append(BadgesByCategory[b.Category], b)
	}
}

func newBadge(id, name, description string, tier Tier, category Category, req map[string]int64) BadgeDefinition {
	return BadgeDefinition{
		ID:           id,
		Slug:         slug.Make(name),
		Name:         name,
		Description:  description,
		Tier:         tier,
		Category:     category,
		Requirements: req,
	}
}

// LookupBadge returns the catalog entry for an achievement id.
func LookupBadge(achievementID string) (BadgeDefinition, bool) {
	b, ok := BadgeByID[achievementID]
	return b, ok
}
