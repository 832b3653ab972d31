package stores

import (
	"context"
	"fmt"

	"game-achievement-system/models"
	"game-achievement-system/services"

	"gorm.io/gorm"
)

// SnapshotStore answers session and observation queries, including the
// batched window/aggregate queries the placement and team-victory processors
// rely on.
type SnapshotStore struct {
	DB *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{DB: db}
}

func (s *SnapshotStore) ObservationsForPlayer(ctx context.Context, roundID, playerName string) ([]models.PlayerObservation, error) {
	var obs []models.PlayerObservation
	err := s.DB.WithContext(ctx).
		Where("round_id = ? AND player_name = ?", roundID, playerName).
		Order("timestamp ASC, id ASC").
		Find(&obs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observations for %s in round %s: %w", playerName, roundID, err)
	}
	return obs, nil
}

func (s *SnapshotStore) SessionsForRound(ctx context.Context, roundID string) ([]models.PlayerSession, error) {
	var sessions []models.PlayerSession
	err := s.DB.WithContext(ctx).
		Where("round_id = ?", roundID).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions for round %s: %w", roundID, err)
	}
	return sessions, nil
}

// RankedSessions ranks every round's non-bot sessions in one window query.
// Ordering must match services.RankRoundSessions: score desc, kills desc,
// session id asc.
func (s *SnapshotStore) RankedSessions(ctx context.Context, roundIDs []string, topN int) ([]services.RankedSession, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}

	var rows []services.RankedSession
	err := s.DB.WithContext(ctx).Raw(`
		SELECT ranked.round_id,
		       ranked.session_id,
		       ranked.player_name,
		       ranked.score,
		       ranked.kills,
		       ranked.deaths,
		       ranked.rank,
		       COALESCE(last_obs.team_label, '') AS final_team
		FROM (
			SELECT ps.round_id,
			       ps.id AS session_id,
			       ps.player_name,
			       ps.score,
			       ps.kills,
			       ps.deaths,
			       ROW_NUMBER() OVER (
			           PARTITION BY ps.round_id
			           ORDER BY ps.score DESC, ps.kills DESC, ps.id ASC
			       ) AS rank
			FROM player_sessions ps
			WHERE ps.round_id IN ? AND ps.is_bot = false AND ps.deleted_at IS NULL
		) ranked
		LEFT JOIN LATERAL (
			SELECT po.team_label
			FROM player_observations po
			WHERE po.session_id = ranked.session_id
			ORDER BY po.timestamp DESC, po.id DESC
			LIMIT 1
		) last_obs ON true
		WHERE ranked.rank <= ?
	`, roundIDs, topN).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank sessions for %d round(s): %w", len(roundIDs), err)
	}
	return rows, nil
}

// TeamObservationStats aggregates per-session observation counts for a batch
// of rounds in one pass: total and per-team counts, the team of the last
// observation, and last-seen time.
func (s *SnapshotStore) TeamObservationStats(ctx context.Context, roundIDs []string) ([]services.SessionTeamStats, error) {
	if len(roundIDs) == 0 {
		return nil, nil
	}

	var rows []services.SessionTeamStats
	err := s.DB.WithContext(ctx).Raw(`
		SELECT po.round_id,
		       po.session_id,
		       po.player_name,
		       COUNT(*) AS total_obs,
		       COUNT(*) FILTER (WHERE po.team = 1) AS team1_obs,
		       COUNT(*) FILTER (WHERE po.team = 2) AS team2_obs,
		       (ARRAY_AGG(po.team ORDER BY po.timestamp DESC, po.id DESC))[1] AS final_team,
		       MAX(po.timestamp) AS last_seen_at,
		       MAX(ps.kills) AS kills,
		       MAX(ps.deaths) AS deaths,
		       MAX(ps.score) AS score
		FROM player_observations po
		JOIN player_sessions ps ON ps.id = po.session_id
		WHERE po.round_id IN ? AND ps.is_bot = false AND ps.deleted_at IS NULL
		GROUP BY po.round_id, po.session_id, po.player_name
	`, roundIDs).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate team observations for %d round(s): %w", len(roundIDs), err)
	}
	return rows, nil
}
