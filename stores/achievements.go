package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"game-achievement-system/models"
	"game-achievement-system/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementStore owns the player_achievements table. Inserts go through
// ON CONFLICT DO NOTHING on the (player, achievement id, version) key, so
// re-running a cycle after partial failure never creates duplicates.
type AchievementStore struct {
	DB *gorm.DB
}

func NewAchievementStore(db *gorm.DB) *AchievementStore {
	return &AchievementStore{DB: db}
}

func (s *AchievementStore) InsertBatch(ctx context.Context, achievements []models.PlayerAchievement) (int64, error) {
	if len(achievements) == 0 {
		return 0, nil
	}
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "player_name"},
			{Name: "achievement_id"},
			{Name: "version"},
		},
		DoNothing: true,
	}).Create(&achievements)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert %d achievement(s): %w", len(achievements), result.Error)
	}
	return result.RowsAffected, nil
}

func (s *AchievementStore) ExistingIDs(ctx context.Context, playerName string, types []models.AchievementType) (map[string]struct{}, error) {
	var ids []string
	err := s.DB.WithContext(ctx).
		Model(&models.PlayerAchievement{}).
		Where("player_name = ? AND achievement_type IN ?", playerName, types).
		Distinct().
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievement ids for %s: %w", playerName, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *AchievementStore) AchievementsInRange(ctx context.Context, playerName string, typ models.AchievementType, from, to time.Time) ([]models.PlayerAchievement, error) {
	var rows []models.PlayerAchievement
	err := s.DB.WithContext(ctx).
		Where("player_name = ? AND achievement_type = ? AND achieved_at BETWEEN ? AND ?", playerName, typ, from, to).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s achievements for %s: %w", typ, playerName, err)
	}
	return rows, nil
}

func (s *AchievementStore) MaxProcessedAt(ctx context.Context, types []models.AchievementType) (time.Time, error) {
	var watermark sql.NullTime
	err := s.DB.WithContext(ctx).
		Model(&models.PlayerAchievement{}).
		Where("achievement_type IN ?", types).
		Select("MAX(processed_at)").
		Scan(&watermark).Error
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark for %v: %w", types, err)
	}
	if !watermark.Valid {
		return time.Time{}, nil
	}
	return watermark.Time, nil
}

func (s *AchievementStore) DeleteByIDs(ctx context.Context, playerName string, achievementIDs []string) (int64, error) {
	if len(achievementIDs) == 0 {
		return 0, nil
	}
	result := s.DB.WithContext(ctx).
		Where("player_name = ? AND achievement_id IN ?", playerName, achievementIDs).
		Delete(&models.PlayerAchievement{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete achievements for %s: %w", playerName, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *AchievementStore) ExistingKeys(ctx context.Context, types []models.AchievementType) ([]services.AchievementKey, error) {
	var keys []services.AchievementKey
	err := s.DB.WithContext(ctx).
		Model(&models.PlayerAchievement{}).
		Where("achievement_type IN ?", types).
		Select("player_name", "achievement_type", "achievement_id", "version").
		Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievement keys: %w", err)
	}
	return keys, nil
}
