package models

// GameSession is one paid play-through. IDs come from
// EngineState.SessionCounter so they stay monotonic and 1-based even
// across redeploys against the same database.
type GameSession struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	PlayerID  string `json:"player_id" gorm:"not null;index"`
	StartTime int64  `json:"start_time" gorm:"not null"`
	Day       int64  `json:"day" gorm:"not null;index"`
	Score     uint32 `json:"score"`
	Level     uint16 `json:"level"`
	Completed bool   `json:"completed" gorm:"default:false"`
}

// MaxSessionAge is how long a started session stays submittable, in seconds.
const MaxSessionAge int64 = 3600
