package models

// ScoreEntry is the payload of one ranking slot. An empty player id means
// the slot is unoccupied.
type ScoreEntry struct {
	Player string `json:"player"`
	Score  uint32 `json:"score"`
	Level  uint16 `json:"level"`
}

func (e ScoreEntry) Empty() bool {
	return e.Player == ""
}

// DailySummary holds one day's frozen-capable leaderboard state: the top-3
// slots, the day's money counters, and — once finalized — the reward amount
// locked in per rank. Reward amounts are computed exactly once at
// finalization so later storage cleanup can never change what a winner is
// owed.
type DailySummary struct {
	Day              int64      `json:"day" gorm:"primaryKey;autoIncrement:false"`
	First            ScoreEntry `json:"first" gorm:"embedded;embeddedPrefix:first_"`
	Second           ScoreEntry `json:"second" gorm:"embedded;embeddedPrefix:second_"`
	Third            ScoreEntry `json:"third" gorm:"embedded;embeddedPrefix:third_"`
	TotalCollected   int64      `json:"total_collected" gorm:"default:0"`
	TotalPlayers     int64      `json:"total_players" gorm:"default:0"`
	Finalized        bool       `json:"finalized" gorm:"default:false"`
	FinalizedAt      int64      `json:"finalized_at" gorm:"default:0"`
	Reward1          int64      `json:"reward1" gorm:"default:0"`
	Reward2          int64      `json:"reward2" gorm:"default:0"`
	Reward3          int64      `json:"reward3" gorm:"default:0"`
	RewardsAvailable bool       `json:"rewards_available" gorm:"default:false"`
	ExpiredReclaimed bool       `json:"expired_reclaimed" gorm:"default:false"`
}

// Slots returns the ranking as a slice ordered best-first.
func (s *DailySummary) Slots() [3]ScoreEntry {
	return [3]ScoreEntry{s.First, s.Second, s.Third}
}

func (s *DailySummary) setSlots(slots [3]ScoreEntry) {
	s.First, s.Second, s.Third = slots[0], slots[1], slots[2]
}

// Offer presents a (player, score, level) submission to the top-3 table and
// reports whether the table changed. Rules:
//   - a player holds at most one slot; a lower score than their existing
//     slot never displaces it
//   - slots are sorted descending by score, ties keep the earlier entrant
//     ahead (strict greater-than when shifting)
//   - a score that does not beat the lowest of a full table is discarded
func (s *DailySummary) Offer(player string, score uint32, level uint16) bool {
	slots := s.Slots()

	// Existing slot for this player: keep it unless strictly beaten.
	for i, e := range slots {
		if e.Player == player {
			if score <= e.Score {
				return false
			}
			copy(slots[i:], slots[i+1:])
			slots[2] = ScoreEntry{}
			break
		}
	}

	pos := -1
	for i, e := range slots {
		if e.Empty() || score > e.Score {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}

	copy(slots[pos+1:], slots[pos:2])
	slots[pos] = ScoreEntry{Player: player, Score: score, Level: level}
	s.setSlots(slots)
	return true
}

// RankOf returns the player's rank 1..3, or 0 if absent.
func (s *DailySummary) RankOf(player string) int {
	for i, e := range s.Slots() {
		if !e.Empty() && e.Player == player {
			return i + 1
		}
	}
	return 0
}

// RewardForRank returns the frozen reward for rank 1..3; 0 otherwise.
func (s *DailySummary) RewardForRank(rank int) int64 {
	switch rank {
	case 1:
		return s.Reward1
	case 2:
		return s.Reward2
	case 3:
		return s.Reward3
	}
	return 0
}
