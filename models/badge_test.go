package models

import (
	"testing"
)

func TestBadgeCatalogCoversEveryThreshold(t *testing.T) {
	var ids []string
	for _, th := range KillStreakThresholds {
		ids = append(ids, KillStreakID(th))
	}
	for _, th := range TotalKillThresholds {
		ids = append(ids, TotalKillsID(th))
	}
	for _, h := range PlayHourThresholds {
		ids = append(ids, TotalPlaytimeID(h))
	}
	for _, th := range TotalScoreThresholds {
		ids = append(ids, TotalScoreID(th))
	}
	for rank := 1; rank <= 3; rank++ {
		ids = append(ids, PlacementID(rank))
	}
	ids = append(ids, TeamVictoryID, TeamVictorySwitchedID)

	for _, id := range ids {
		badge, ok := LookupBadge(id)
		if !ok {
			t.Errorf("no catalog entry for %s", id)
			continue
		}
		if badge.Name == "" || badge.Slug == "" || badge.Description == "" {
			t.Errorf("%s has incomplete display fields: %+v", id, badge)
		}
		if !badge.Tier.Valid() {
			t.Errorf("%s has invalid tier %q", id, badge.Tier)
		}
		if !badge.Category.Valid() {
			t.Errorf("%s has invalid category %q", id, badge.Category)
		}
	}

	if len(BadgeCatalog) != len(ids) {
		t.Errorf("catalog has %d entries, want %d", len(BadgeCatalog), len(ids))
	}
}

func TestBadgeCatalogIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range BadgeCatalog {
		if seen[b.ID] {
			t.Errorf("duplicate catalog id %s", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestBadgeTierProgressionIsMonotonic(t *testing.T) {
	rank := map[Tier]int{TierBronze: 1, TierSilver: 2, TierGold: 3, TierLegend: 4}

	check := func(name string, ids []string) {
		t.Helper()
		prev := 0
		for _, id := range ids {
			badge, ok := LookupBadge(id)
			if !ok {
				t.Fatalf("no catalog entry for %s", id)
			}
			if rank[badge.Tier] < prev {
				t.Errorf("%s: tier drops at %s", name, id)
			}
			prev = rank[badge.Tier]
		}
	}

	var streaks, kills, hours, scores []string
	for _, th := range KillStreakThresholds {
		streaks = append(streaks, KillStreakID(th))
	}
	for _, th := range TotalKillThresholds {
		kills = append(kills, TotalKillsID(th))
	}
	for _, h := range PlayHourThresholds {
		hours = append(hours, TotalPlaytimeID(h))
	}
	for _, th := range TotalScoreThresholds {
		scores = append(scores, TotalScoreID(th))
	}

	check("kill streaks", streaks)
	check("total kills", kills)
	check("play hours", hours)
	check("total score", scores)
}

func TestBadgesByCategoryPartitionsCatalog(t *testing.T) {
	total := 0
	for category, badges := range BadgesByCategory {
		if !category.Valid() {
			t.Errorf("invalid category key %q", category)
		}
		for _, b := range badges {
			if b.Category != category {
				t.Errorf("%s filed under %s but declares %s", b.ID, category, b.Category)
			}
		}
		total += len(badges)
	}
	if total != len(BadgeCatalog) {
		t.Errorf("category buckets hold %d entries, catalog has %d", total, len(BadgeCatalog))
	}
}

func TestThresholdTablesAreAscending(t *testing.T) {
	for i := 1; i < len(KillStreakThresholds); i++ {
		if KillStreakThresholds[i] <= KillStreakThresholds[i-1] {
			t.Fatal("kill streak thresholds must be strictly ascending")
		}
	}
	ascending := func(name string, vals []int64) {
		t.Helper()
		for i := 1; i < len(vals); i++ {
			if vals[i] <= vals[i-1] {
				t.Fatalf("%s thresholds must be strictly ascending", name)
			}
		}
	}
	ascending("total kill", TotalKillThresholds)
	ascending("play hour", PlayHourThresholds)
	ascending("total score", TotalScoreThresholds)
}
