package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Round is one complete play session on a server/map. Owned by the tracking
// subsystem — this service only ever reads it.
type Round struct {
	ID         string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ServerID   string     `gorm:"index;not null" json:"server_id"`
	ServerName string     `json:"server_name"`
	MapName    string     `gorm:"index" json:"map_name"`
	GameID     string     `gorm:"index" json:"game_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `gorm:"index" json:"end_time,omitempty"` // nil = still running

	// Final ticket counts decide the winner; nil when the server never
	// reported them (older data).
	Tickets1 *int `json:"tickets1,omitempty"`
	Tickets2 *int `json:"tickets2,omitempty"`

	Team1Label string `json:"team1_label"`
	Team2Label string `json:"team2_label"`

	ParticipantCount int `json:"participant_count"`

	Timestamps
}

// HasWinner reports whether ticket counts yield a strict winner (no draw).
func (r *Round) HasWinner() bool {
	return r.Tickets1 != nil && r.Tickets2 != nil && *r.Tickets1 != *r.Tickets2
}

// WinningTeam returns 1 or 2, or 0 when there is no strict winner.
func (r *Round) WinningTeam() int {
	if !r.HasWinner() {
		return 0
	}
	if *r.Tickets1 > *r.Tickets2 {
		return 1
	}
	return 2
}

// PlayerSession is one player's participation in one round, with final stats.
type PlayerSession struct {
	ID         string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RoundID    string     `gorm:"index;not null" json:"round_id"`
	PlayerName string     `gorm:"index;not null" json:"player_name"`
	GameID     string     `gorm:"index" json:"game_id"`
	Kills      int        `json:"kills"`
	Deaths     int        `json:"deaths"`
	Score      int64      `json:"score"`
	PlayTime   int        `json:"play_time_minutes"`
	TeamLabel  string     `json:"team_label"`
	IsBot      bool       `gorm:"index" json:"is_bot"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	Timestamps
}

// PlayerObservation is a periodic point-in-time capture of a player's live
// stats during a round. Append-only; ordering within a session is
// (timestamp, id).
type PlayerObservation struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"index;not null" json:"session_id"`
	RoundID    string    `gorm:"index;not null" json:"round_id"`
	PlayerName string    `gorm:"index;not null" json:"player_name"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Kills      int       `json:"kills"`
	Deaths     int       `json:"deaths"`
	Score      int64     `json:"score"`
	Team       int       `json:"team"` // 1 or 2
	TeamLabel  string    `json:"team_label"`
}

// PlayerRound is a completed-round summary for one player, derived from
// Round + PlayerSession each processing cycle. Never persisted, never
// mutated once built.
type PlayerRound struct {
	PlayerName string
	RoundID    string
	SessionID  string
	ServerID   string
	ServerName string
	MapName    string
	GameID     string
	StartTime  time.Time
	EndTime    time.Time
	Kills      int
	Deaths     int
	Score      int64
	PlayTime   int // minutes
	TeamLabel  string
	IsBot      bool
	LastSeenAt time.Time
}
