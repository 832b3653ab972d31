package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"game-achievement-system/models"
	"game-achievement-system/services"

	"gorm.io/gorm"
)

// roundGapMinutes separates two rounds in the backfill streak query when the
// tracking data predates the rounds table: a >5 minute snapshot gap (or a
// map change) starts a new round.
const roundGapMinutes = 5

// BackfillStore implements the set-oriented restatements of the achievement
// rules used by the historical path. One window query per chunk replaces the
// incremental path's per-round loop.
type BackfillStore struct {
	DB *gorm.DB
}

func NewBackfillStore(db *gorm.DB) *BackfillStore {
	return &BackfillStore{DB: db}
}

// milestone families and the session column carrying each one's per-round
// contribution. Thresholds come from the shared catalog tables; playtime is
// expressed in minutes to match the rollup unit.
func milestoneFamilies() []struct {
	family     string
	column     string
	thresholds []int64
} {
	minuteThresholds := make([]int64, len(models.PlayHourThresholds))
	for i, h := range models.PlayHourThresholds {
		minuteThresholds[i] = h * 60
	}
	return []struct {
		family     string
		column     string
		thresholds []int64
	}{
		{"kills", "ps.kills", models.TotalKillThresholds},
		{"score", "ps.score", models.TotalScoreThresholds},
		{"playtime", "ps.play_time", minuteThresholds},
	}
}

// MilestoneCrossings computes, per player and family, a running cumulative
// sum ordered by round end time and returns the first round where each
// threshold was crossed, restricted to rounds ending in [from, to). The
// running sum always starts from the beginning of history so chunking never
// shifts totals.
func (s *BackfillStore) MilestoneCrossings(ctx context.Context, from, to time.Time) ([]services.MilestoneCrossing, error) {
	var all []services.MilestoneCrossing

	for _, fam := range milestoneFamilies() {
		query := fmt.Sprintf(`
			WITH running AS (
				SELECT ps.player_name,
				       r.id AS round_id,
				       r.server_id,
				       r.map_name,
				       r.game_id,
				       r.end_time,
				       %s AS delta,
				       SUM(%s) OVER (
				           PARTITION BY ps.player_name
				           ORDER BY r.end_time ASC, r.id ASC
				           ROWS UNBOUNDED PRECEDING
				       ) AS total
				FROM player_sessions ps
				JOIN rounds r ON r.id = ps.round_id
				WHERE ps.is_bot = false
				  AND ps.deleted_at IS NULL
				  AND r.deleted_at IS NULL
				  AND r.end_time IS NOT NULL
			)
			SELECT running.player_name,
			       t.threshold,
			       running.total - running.delta AS previous_total,
			       running.total                 AS new_total,
			       running.round_id,
			       running.server_id,
			       running.map_name,
			       running.game_id,
			       running.end_time              AS crossed_at
			FROM running
			JOIN (VALUES %s) AS t(threshold)
			  ON running.total - running.delta < t.threshold
			 AND t.threshold <= running.total
			WHERE running.end_time >= ? AND running.end_time < ?
		`, fam.column, fam.column, thresholdValues(fam.thresholds))

		var rows []services.MilestoneCrossing
		if err := s.DB.WithContext(ctx).Raw(query, from, to).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("running-sum query failed for %s: %w", fam.family, err)
		}
		for i := range rows {
			rows[i].Family = fam.family
		}
		all = append(all, rows...)
	}
	return all, nil
}

// thresholdValues renders a VALUES list from the catalog's threshold table.
// The values are compile-time constants, never user input.
func thresholdValues(thresholds []int64) string {
	parts := make([]string, len(thresholds))
	for i, t := range thresholds {
		parts[i] = fmt.Sprintf("(%d)", t)
	}
	return strings.Join(parts, ", ")
}

// StreakSpans reconstructs uninterrupted kill spans from observation deltas
// with the same rules as the incremental walk: a death interval (including a
// mixed kill+death interval) breaks the streak, as does a round boundary
// inferred from a snapshot gap or map change. A non-monotonic counter (kills
// or deaths going backwards, a stat reset) contributes zero kills but does
// not break the span. Only spans reaching the smallest streak threshold are
// returned.
func (s *BackfillStore) StreakSpans(ctx context.Context, from, to time.Time) ([]services.StreakSpan, error) {
	query := fmt.Sprintf(`
		WITH obs AS (
			SELECT po.player_name,
			       po.id,
			       po.timestamp,
			       po.kills,
			       po.deaths,
			       r.server_id,
			       r.map_name,
			       r.game_id,
			       LAG(po.timestamp) OVER w AS prev_ts,
			       LAG(po.kills)     OVER w AS prev_kills,
			       LAG(po.deaths)    OVER w AS prev_deaths,
			       LAG(r.map_name)   OVER w AS prev_map
			FROM player_observations po
			JOIN rounds r ON r.id = po.round_id
			WHERE po.timestamp >= ? AND po.timestamp < ?
			WINDOW w AS (PARTITION BY po.player_name ORDER BY po.timestamp ASC, po.id ASC)
		),
		steps AS (
			SELECT *,
			       CASE
			           WHEN prev_ts IS NULL
			             OR prev_map IS DISTINCT FROM map_name
			             OR timestamp - prev_ts > interval '%d minutes'
			             OR deaths > prev_deaths
			           THEN 1 ELSE 0
			       END AS boundary
			FROM obs
		),
		grouped AS (
			SELECT *,
			       CASE WHEN boundary = 1
			              OR kills < prev_kills
			              OR deaths < prev_deaths
			            THEN 0
			            ELSE GREATEST(kills - prev_kills, 0)
			       END AS kill_delta,
			       SUM(boundary) OVER (
			           PARTITION BY player_name
			           ORDER BY timestamp ASC, id ASC
			           ROWS UNBOUNDED PRECEDING
			       ) AS streak_group
			FROM steps
		)
		SELECT player_name,
		       MIN(server_id)  AS server_id,
		       MIN(map_name)   AS map_name,
		       MIN(game_id)    AS game_id,
		       MIN(timestamp)  AS start_time,
		       MAX(timestamp)  AS end_time,
		       SUM(kill_delta) AS kills
		FROM grouped
		GROUP BY player_name, streak_group
		HAVING SUM(kill_delta) >= ?
	`, roundGapMinutes)

	var rows []services.StreakSpan
	err := s.DB.WithContext(ctx).
		Raw(query, from, to, models.KillStreakThresholds[0]).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("streak window query failed: %w", err)
	}
	return rows, nil
}
