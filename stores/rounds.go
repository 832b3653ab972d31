package stores

import (
	"context"
	"fmt"
	"time"

	"game-achievement-system/models"

	"gorm.io/gorm"
)

// RoundStore answers round queries from Postgres. Rounds are owned by the
// tracking subsystem, so this store is read-only.
type RoundStore struct {
	DB *gorm.DB
}

func NewRoundStore(db *gorm.DB) *RoundStore {
	return &RoundStore{DB: db}
}

func (s *RoundStore) RoundsEndedSince(ctx context.Context, since time.Time, afterID string, limit int) ([]models.Round, error) {
	query := s.DB.WithContext(ctx).
		Order("end_time ASC, id ASC").
		Limit(limit)
	if afterID == "" {
		query = query.Where("end_time IS NOT NULL AND end_time >= ?", since)
	} else {
		// Keyset resume: strictly after (since, afterID). The text cast keeps
		// the comparison valid for the uuid column; canonical uuid text order
		// matches its byte order, so it agrees with ORDER BY id.
		query = query.Where("end_time IS NOT NULL AND (end_time > ? OR (end_time = ? AND id::text > ?))", since, since, afterID)
	}
	var rounds []models.Round
	if err := query.Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch rounds since %s: %w", since.UTC().Format(time.RFC3339), err)
	}
	return rounds, nil
}

func (s *RoundStore) RoundByID(ctx context.Context, id string) (*models.Round, error) {
	var round models.Round
	if err := s.DB.WithContext(ctx).First(&round, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &round, nil
}
