package models

// PlayerStats accumulates per-player lifetime numbers. Created lazily on
// first play, never deleted. TotalEarnings only grows via successful claims.
type PlayerStats struct {
	PlayerID      string `json:"player_id" gorm:"primaryKey"`
	GamesPlayed   int64  `json:"games_played" gorm:"default:0"`
	LastPlayTime  int64  `json:"last_play_time" gorm:"default:0"`
	HighScore     uint32 `json:"high_score" gorm:"default:0"`
	TotalEarnings int64  `json:"total_earnings" gorm:"default:0"`
}
