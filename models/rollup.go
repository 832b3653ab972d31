package models

import (
	"time"
)

// StatsRollup is a per-player-per-day pre-aggregated totals row. The rollup
// worker maintains it from finished sessions so milestone checks never scan
// raw session history.
type StatsRollup struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlayerName  string    `gorm:"not null;uniqueIndex:idx_rollup_player_period" json:"player_name"`
	PeriodStart time.Time `gorm:"not null;uniqueIndex:idx_rollup_player_period" json:"period_start"`
	GameID      string    `gorm:"index" json:"game_id"`

	Kills       int64 `json:"kills" gorm:"default:0"`
	Deaths      int64 `json:"deaths" gorm:"default:0"`
	Score       int64 `json:"score" gorm:"default:0"`
	PlayMinutes int64 `json:"play_minutes" gorm:"default:0"`
	Rounds      int64 `json:"rounds" gorm:"default:0"`

	Timestamps
}

// PlayerTotals is the cumulative picture of a player at a point in time,
// assembled from rollup rows (plus same-day sessions before the cutoff).
type PlayerTotals struct {
	Kills       int64
	Deaths      int64
	Score       int64
	PlayMinutes int64
	Rounds      int64
}
