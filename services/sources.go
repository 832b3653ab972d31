package services

import (
	"context"
	"time"

	"game-achievement-system/models"
)

// The calculators are written against this capability set so the same rule
// engine runs over any backend that can answer these queries. The GORM
// implementations live in the stores package.

// RoundSource answers "which rounds completed since T".
type RoundSource interface {
	// RoundsEndedSince returns completed rounds ordered by (end_time, id)
	// ascending, capped at limit. With an empty afterID, every round with
	// end_time >= since qualifies; with afterID set, rounds at exactly
	// (since, id <= afterID) are excluded. (since, afterID) is therefore a
	// keyset cursor: batch walks resume at the last returned round without
	// skipping rounds that share its end time.
	RoundsEndedSince(ctx context.Context, since time.Time, afterID string, limit int) ([]models.Round, error)
	RoundByID(ctx context.Context, id string) (*models.Round, error)
}

// SnapshotSource answers per-round session and observation queries.
type SnapshotSource interface {
	// ObservationsForPlayer returns a player's in-round snapshots ordered by
	// (timestamp, id).
	ObservationsForPlayer(ctx context.Context, roundID, playerName string) ([]models.PlayerObservation, error)
	SessionsForRound(ctx context.Context, roundID string) ([]models.PlayerSession, error)

	// RankedSessions ranks each round's non-bot sessions by
	// (score desc, kills desc, session id asc) in a single window query and
	// returns rows with rank <= topN.
	RankedSessions(ctx context.Context, roundIDs []string, topN int) ([]RankedSession, error)

	// TeamObservationStats aggregates per-session observation counts for a
	// batch of rounds in one query.
	TeamObservationStats(ctx context.Context, roundIDs []string) ([]SessionTeamStats, error)
}

// RankedSession is one row of the placement window query.
type RankedSession struct {
	RoundID    string
	SessionID  string
	PlayerName string
	Score      int64
	Kills      int
	Deaths     int
	Rank       int
	FinalTeam  string // team label of the player's last in-round observation
}

// SessionTeamStats is one row of the team-victory aggregate query.
type SessionTeamStats struct {
	RoundID    string
	SessionID  string
	PlayerName string
	TotalObs   int
	Team1Obs   int
	Team2Obs   int
	FinalTeam  int // team of the last observation (1 or 2)
	LastSeenAt time.Time
	Kills      int
	Deaths     int
	Score      int64
}

// MajorityTeam returns the team the player spent most observations on.
func (s SessionTeamStats) MajorityTeam() int {
	if s.Team1Obs >= s.Team2Obs {
		return 1
	}
	return 2
}

// Switched reports whether the player appeared on both teams in the round.
func (s SessionTeamStats) Switched() bool {
	return s.Team1Obs > 0 && s.Team2Obs > 0
}

// RollupSource answers cumulative-totals queries from the pre-aggregated
// per-player-per-period table, never from raw sessions.
type RollupSource interface {
	// TotalsBefore returns the player's cumulative totals strictly before
	// cutoff.
	TotalsBefore(ctx context.Context, playerName string, cutoff time.Time) (models.PlayerTotals, error)
	// CurrentTotals returns the player's totals as of now; used by the
	// milestone invalidation pass after retroactive data correction.
	CurrentTotals(ctx context.Context, playerName string) (models.PlayerTotals, error)
}

// AchievementStore owns the persisted achievement rows.
type AchievementStore interface {
	// InsertBatch inserts with insert-or-ignore semantics on the
	// (player, achievement id, version) uniqueness key and returns the
	// number of rows actually written.
	InsertBatch(ctx context.Context, achievements []models.PlayerAchievement) (int64, error)

	// ExistingIDs returns the set of achievement ids the player already
	// owns for the given types. Ids only, not full rows.
	ExistingIDs(ctx context.Context, playerName string, types []models.AchievementType) (map[string]struct{}, error)

	// AchievementsInRange returns a player's persisted achievements of one
	// type with achieved_at inside [from, to]; used for the repeatable-type
	// time-tolerance filter.
	AchievementsInRange(ctx context.Context, playerName string, typ models.AchievementType, from, to time.Time) ([]models.PlayerAchievement, error)

	// MaxProcessedAt is the watermark read: the latest processed_at among
	// rows of the given types, or the zero time when none exist.
	MaxProcessedAt(ctx context.Context, types []models.AchievementType) (time.Time, error)

	// DeleteByIDs removes a player's rows for the given achievement ids.
	// Only the milestone invalidation pass may call this.
	DeleteByIDs(ctx context.Context, playerName string, achievementIDs []string) (int64, error)

	// ExistingKeys streams the lightweight uniqueness keys of every persisted
	// row of the given types. The backfill path loads these once per run
	// instead of querying per player.
	ExistingKeys(ctx context.Context, types []models.AchievementType) ([]AchievementKey, error)
}

// AchievementKey is the uniqueness key of a persisted achievement, without
// the rest of the row.
type AchievementKey struct {
	PlayerName      string
	AchievementType models.AchievementType
	AchievementID   string
	Version         int64
}

// MilestoneCrossing is one row of the backfill running-sum query: the first
// round in which a player's cumulative total crossed a threshold.
type MilestoneCrossing struct {
	PlayerName    string
	Family        string // "kills", "score" or "playtime"
	Threshold     int64
	PreviousTotal int64
	NewTotal      int64
	RoundID       string
	ServerID      string
	MapName       string
	GameID        string
	CrossedAt     time.Time
}

// StreakSpan is one row of the backfill streak window query: an uninterrupted
// kill span reconstructed from observation deltas, with round boundaries
// inferred from snapshot gaps and map changes.
type StreakSpan struct {
	PlayerName string
	ServerID   string
	MapName    string
	GameID     string
	StartTime  time.Time
	EndTime    time.Time
	Kills      int
}

// BackfillSource exposes the set-oriented restatements of the rules used by
// the historical path.
type BackfillSource interface {
	MilestoneCrossings(ctx context.Context, from, to time.Time) ([]MilestoneCrossing, error)
	StreakSpans(ctx context.Context, from, to time.Time) ([]StreakSpan, error)
}
