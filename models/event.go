package models

// Event types consumed by the external indexer.
const (
	EventGameStarted           = "GameStarted"
	EventGameCompleted         = "GameCompleted"
	EventHighScoreSet          = "HighScoreSet"
	EventDayFinalized          = "DayFinalized"
	EventDailyRewardPaid       = "DailyRewardPaid"
	EventExpiredFundsReclaimed = "ExpiredFundsReclaimed"
	EventReserveUpdated        = "ReserveUpdated"
	EventPrizePoolUpdated      = "PrizePoolUpdated"
)

// GameEvent is an outbox row. Events are inserted in the same transaction
// as the state change they describe and shipped to the indexer by the
// dispatch worker afterwards, so observers never see a fact the database
// did not commit.
type GameEvent struct {
	ID         string `json:"id" gorm:"primaryKey"`
	Type       string `json:"type" gorm:"not null;index"`
	Payload    string `json:"payload" gorm:"type:text"`
	CreatedAt  int64  `json:"created_at" gorm:"not null"`
	Dispatched bool   `json:"dispatched" gorm:"default:false;index"`
}
