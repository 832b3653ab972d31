package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"game-achievement-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RollupWorker maintains the per-player-per-day stats_rollups table the
// milestone calculator reads from. Every tick it recomputes the daily
// aggregates for all days touched since the last successful sync and
// batch-upserts them, so the rollup table converges even after upstream
// data corrections.
type RollupWorker struct {
	DB       *gorm.DB
	Interval time.Duration
}

func NewRollupWorker(db *gorm.DB, interval time.Duration) *RollupWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RollupWorker{DB: db, Interval: interval}
}

// Start runs the poll loop until the context is cancelled. The sync cursor
// only advances after a successful upsert — a failed tick retries the same
// window next time.
func (w *RollupWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting stats rollup worker (sessions → stats_rollups)…")

	// First pass covers the last two days so a restart never leaves a
	// half-aggregated day behind.
	lastSync := time.Now().UTC().Add(-48 * time.Hour)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stats rollup worker stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()
			count, err := w.syncSince(ctx, lastSync)
			if err != nil {
				log.Printf("❌ Rollup sync failed, retrying same window next tick: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("📊 Upserted %d rollup row(s)", count)
			}
			lastSync = tickTime
		}
	}
}

// syncSince recomputes the daily aggregates for every day that has rounds
// ending at or after the start of lastSync's day, then upserts them in one
// statement. Recomputing whole days keeps the overwrite semantics correct.
func (w *RollupWorker) syncSince(ctx context.Context, lastSync time.Time) (int, error) {
	dayStart := lastSync.UTC().Truncate(24 * time.Hour)

	var rollups []models.StatsRollup
	err := w.DB.WithContext(ctx).Raw(`
		SELECT ps.player_name,
		       date_trunc('day', r.end_time) AS period_start,
		       MAX(ps.game_id)               AS game_id,
		       COALESCE(SUM(ps.kills), 0)    AS kills,
		       COALESCE(SUM(ps.deaths), 0)   AS deaths,
		       COALESCE(SUM(ps.score), 0)    AS score,
		       COALESCE(SUM(ps.play_time), 0) AS play_minutes,
		       COUNT(*)                      AS rounds
		FROM player_sessions ps
		JOIN rounds r ON r.id = ps.round_id
		WHERE ps.is_bot = false
		  AND ps.deleted_at IS NULL
		  AND r.deleted_at IS NULL
		  AND r.end_time >= ?
		GROUP BY ps.player_name, date_trunc('day', r.end_time)
	`, dayStart).Scan(&rollups).Error
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate sessions into rollups: %w", err)
	}
	if len(rollups) == 0 {
		return 0, nil
	}

	// Bulk upsert: one statement, atomic per row (PostgreSQL ON CONFLICT).
	if err := w.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "player_name"}, {Name: "period_start"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"game_id",
				"kills",
				"deaths",
				"score",
				"play_minutes",
				"rounds",
				"updated_at",
			}),
		},
	).Create(&rollups).Error; err != nil {
		return 0, fmt.Errorf("failed to upsert %d rollup row(s): %w", len(rollups), err)
	}
	return len(rollups), nil
}
