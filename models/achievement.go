package models

import (
	"time"
)

// AchievementType is the closed set of achievement families this service emits.
type AchievementType string

const (
	TypeKillStreak          AchievementType = "kill_streak"
	TypeMilestone           AchievementType = "milestone"
	TypePlacement           AchievementType = "placement"
	TypeBadge               AchievementType = "badge"
	TypeTeamVictory         AchievementType = "team_victory"
	TypeTeamVictorySwitched AchievementType = "team_victory_switched"
)

func (t AchievementType) Valid() bool {
	switch t {
	case TypeKillStreak, TypeMilestone, TypePlacement, TypeBadge, TypeTeamVictory, TypeTeamVictorySwitched:
		return true
	}
	return false
}

// Repeatable reports whether a player can earn the same achievement id more
// than once (kill streaks, placements and team victories recur across rounds;
// milestones and badges are earned at most once per id).
func (t AchievementType) Repeatable() bool {
	switch t {
	case TypeKillStreak, TypePlacement, TypeTeamVictory, TypeTeamVictorySwitched:
		return true
	}
	return false
}

// Tier ranks an achievement's significance.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
	TierLegend Tier = "legend"
)

func (t Tier) Valid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierLegend:
		return true
	}
	return false
}

// Category groups badge definitions in the catalog.
type Category string

const (
	CategoryCombat      Category = "combat"
	CategoryProgression Category = "progression"
	CategoryPerformance Category = "performance"
	CategoryTeamplay    Category = "teamplay"
	CategorySocial      Category = "social"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCombat, CategoryProgression, CategoryPerformance, CategoryTeamplay, CategorySocial:
		return true
	}
	return false
}

// PlayerAchievement is an awarded achievement row. Rows are append-only:
// re-inserting an existing (player, achievement_id, version) is silently
// ignored, and rows are only ever deleted by the milestone invalidation pass.
type PlayerAchievement struct {
	ID              string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlayerName      string          `gorm:"index;not null;uniqueIndex:idx_player_achievement_version" json:"player_name"`
	AchievementType AchievementType `gorm:"type:varchar(32);index;not null" json:"achievement_type"`
	AchievementID   string          `gorm:"not null;uniqueIndex:idx_player_achievement_version" json:"achievement_id"`
	AchievementName string          `json:"achievement_name"`
	Tier            Tier            `gorm:"type:varchar(16);default:'bronze'" json:"tier"`
	Value           int64           `json:"value"`

	// AchievedAt is when the triggering event occurred in-game, never when it
	// was processed. Version is derived from AchievedAt so reprocessing the
	// same event always produces the same uniqueness key.
	AchievedAt  time.Time `gorm:"index;not null" json:"achieved_at"`
	ProcessedAt time.Time `gorm:"index;not null" json:"processed_at"`
	Version     int64     `gorm:"not null;uniqueIndex:idx_player_achievement_version" json:"version"`

	ServerID string `gorm:"index" json:"server_id"`
	MapName  string `json:"map_name"`
	RoundID  string `gorm:"index" json:"round_id"`
	GameID   string `gorm:"index" json:"game_id"`

	// Metadata is an opaque JSON blob capturing computation context for audit.
	Metadata string `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// VersionFor derives the idempotent version stamp for an achievement event.
// Two cycles processing the same event land on the same stamp.
func VersionFor(achievedAt time.Time) int64 {
	return achievedAt.UTC().UnixMilli()
}

// NewAchievement fills the deterministic fields shared by every calculator.
func NewAchievement(player string, typ AchievementType, achievementID, name string, tier Tier, value int64, achievedAt time.Time) PlayerAchievement {
	return PlayerAchievement{
		PlayerName:      player,
		AchievementType: typ,
		AchievementID:   achievementID,
		AchievementName: name,
		Tier:            tier,
		Value:           value,
		AchievedAt:      achievedAt.UTC(),
		ProcessedAt:     time.Now().UTC(),
		Version:         VersionFor(achievedAt),
	}
}

// KillStreakMetadata captures the snapshot-walk context of a streak award.
type KillStreakMetadata struct {
	StreakLength int    `json:"streak_length"`
	Threshold    int    `json:"threshold"`
	SnapshotSpan string `json:"snapshot_span,omitempty"`
	Estimated    bool   `json:"estimated,omitempty"`
}

// MilestoneMetadata captures the totals around a threshold crossing.
type MilestoneMetadata struct {
	Family        string `json:"family"`
	Threshold     int64  `json:"threshold"`
	PreviousTotal int64  `json:"previous_total"`
	NewTotal      int64  `json:"new_total"`
	RoundDelta    int64  `json:"round_delta"`
}

// PlacementMetadata captures a podium finish.
type PlacementMetadata struct {
	Rank      int    `json:"rank"`
	Score     int64  `json:"score"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	FinalTeam string `json:"final_team,omitempty"`
}

// TeamVictoryMetadata captures everything needed to audit a victory award
// without recomputing it.
type TeamVictoryMetadata struct {
	WinningTeam        string  `json:"winning_team"`
	LosingTeam         string  `json:"losing_team"`
	WinnerTickets      int     `json:"winner_tickets"`
	LoserTickets       int     `json:"loser_tickets"`
	ServerName         string  `json:"server_name,omitempty"`
	Score              int64   `json:"score"`
	Kills              int     `json:"kills"`
	Deaths             int     `json:"deaths"`
	ParticipationRatio float64 `json:"participation_ratio"`
	ContributionScore  float64 `json:"contribution_score"`
	Switched           bool    `json:"switched"`
}
