package models

// EngineState is the singleton row every mutating operation locks FOR
// UPDATE first. That lock is what serializes the whole engine: sessions,
// ranking, settlement and claims form one consistency domain.
type EngineState struct {
	ID               int   `json:"-" gorm:"primaryKey"`
	CurrentDay       int64 `json:"current_day"`
	OldestTrackedDay int64 `json:"oldest_tracked_day"`
	TotalPrizePool   int64 `json:"total_prize_pool"`
	HouseReserve     int64 `json:"house_reserve"`
	SessionCounter   uint64 `json:"session_counter"`
}

// EngineStateID is the fixed primary key of the singleton row.
const EngineStateID = 1
