package models

// DailyClaim records that a player collected their reward for a day.
// Written exactly once per (day, player); never reset.
type DailyClaim struct {
	Day       int64  `json:"day" gorm:"primaryKey;autoIncrement:false"`
	PlayerID  string `json:"player_id" gorm:"primaryKey"`
	Amount    int64  `json:"amount" gorm:"not null"`
	Rank      int    `json:"rank" gorm:"not null"`
	ClaimedAt int64  `json:"claimed_at" gorm:"not null"`
}
