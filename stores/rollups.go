package stores

import (
	"context"
	"fmt"
	"time"

	"game-achievement-system/models"

	"gorm.io/gorm"
)

// RollupStore reads cumulative totals from the pre-aggregated
// per-player-per-day stats_rollups table. Only the current (not yet rolled
// up) day falls back to a bounded session scan.
type RollupStore struct {
	DB *gorm.DB
}

func NewRollupStore(db *gorm.DB) *RollupStore {
	return &RollupStore{DB: db}
}

// TotalsBefore sums completed rollup days before the cutoff's day, then adds
// the cutoff-day tail from sessions of rounds that ended strictly before the
// cutoff. The tail scan is at most one day of one player's sessions.
func (s *RollupStore) TotalsBefore(ctx context.Context, playerName string, cutoff time.Time) (models.PlayerTotals, error) {
	day := cutoff.UTC().Truncate(24 * time.Hour)

	var totals models.PlayerTotals
	err := s.DB.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(kills), 0)        AS kills,
		       COALESCE(SUM(deaths), 0)       AS deaths,
		       COALESCE(SUM(score), 0)        AS score,
		       COALESCE(SUM(play_minutes), 0) AS play_minutes,
		       COALESCE(SUM(rounds), 0)       AS rounds
		FROM stats_rollups
		WHERE player_name = ? AND period_start < ? AND deleted_at IS NULL
	`, playerName, day).Scan(&totals).Error
	if err != nil {
		return models.PlayerTotals{}, fmt.Errorf("failed to sum rollups for %s: %w", playerName, err)
	}

	tail, err := s.sessionTail(ctx, playerName, day, cutoff)
	if err != nil {
		return models.PlayerTotals{}, err
	}

	totals.Kills += tail.Kills
	totals.Deaths += tail.Deaths
	totals.Score += tail.Score
	totals.PlayMinutes += tail.PlayMinutes
	totals.Rounds += tail.Rounds
	return totals, nil
}

// CurrentTotals is TotalsBefore with an open upper bound; the invalidation
// pass uses it to re-derive the player's present totals.
func (s *RollupStore) CurrentTotals(ctx context.Context, playerName string) (models.PlayerTotals, error) {
	return s.TotalsBefore(ctx, playerName, time.Now().UTC().Add(time.Minute))
}

func (s *RollupStore) sessionTail(ctx context.Context, playerName string, from, to time.Time) (models.PlayerTotals, error) {
	var tail models.PlayerTotals
	err := s.DB.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(ps.kills), 0)     AS kills,
		       COALESCE(SUM(ps.deaths), 0)    AS deaths,
		       COALESCE(SUM(ps.score), 0)     AS score,
		       COALESCE(SUM(ps.play_time), 0) AS play_minutes,
		       COUNT(*)                       AS rounds
		FROM player_sessions ps
		JOIN rounds r ON r.id = ps.round_id
		WHERE ps.player_name = ?
		  AND ps.is_bot = false
		  AND ps.deleted_at IS NULL
		  AND r.deleted_at IS NULL
		  AND r.end_time >= ? AND r.end_time < ?
	`, playerName, from, to).Scan(&tail).Error
	if err != nil {
		return models.PlayerTotals{}, fmt.Errorf("failed to scan session tail for %s: %w", playerName, err)
	}
	return tail, nil
}
