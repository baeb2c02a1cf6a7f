package services

import (
	"encoding/json"
	"log"
	"time"

	"colour-arcade-backend/cache"
	"colour-arcade-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// LeaderboardService serves the read side of the ranking table: current
// and historical top-3 plus the per-day summaries. Responses for a day are
// cached in Redis when available; the cache is invalidated by the write
// path whenever that day's table changes.
type LeaderboardService struct {
	DB     *gorm.DB
	Policy RewardPolicy
	Clock  clockwork.Clock
	Cache  *cache.LeaderboardCache
}

func NewLeaderboardService(db *gorm.DB, policy RewardPolicy, clock clockwork.Clock, lbCache *cache.LeaderboardCache) *LeaderboardService {
	return &LeaderboardService{DB: db, Policy: policy, Clock: clock, Cache: lbCache}
}

type top3Response struct {
	Day       int64     `json:"day"`
	Players   [3]string `json:"players"`
	Scores    [3]uint32 `json:"scores"`
	Levels    [3]uint16 `json:"levels"`
	Rewards   [3]int64  `json:"rewards"`
	Finalized bool      `json:"finalized"`
}

// buildTop3 renders a summary to the wire shape. For an unfinalized day
// the rewards are a preview: what each slot would earn if the day were
// frozen right now.
func (s *LeaderboardService) buildTop3(day int64, summary *models.DailySummary) top3Response {
	resp := top3Response{Day: day}
	if summary == nil {
		return resp
	}

	slots := summary.Slots()
	rewards := [3]int64{summary.Reward1, summary.Reward2, summary.Reward3}
	if !summary.Finalized {
		rewards, _ = s.Policy.Compute(summary.TotalCollected, summary.TotalPlayers)
	}
	for i, e := range slots {
		resp.Players[i] = e.Player
		resp.Scores[i] = e.Score
		resp.Levels[i] = e.Level
		if e.Empty() {
			rewards[i] = 0
		}
	}
	resp.Rewards = rewards
	resp.Finalized = summary.Finalized
	return resp
}

func (s *LeaderboardService) top3ForDay(c *fiber.Ctx, day int64) error {
	if s.Cache != nil {
		if data, err := s.Cache.GetTop3(c.Context(), day); err == nil {
			c.Set("Content-Type", "application/json")
			return c.Send(data)
		}
	}

	summary, err := loadSummary(s.DB, day)
	if err != nil {
		log.Printf("DB Error fetching summary for day %d: %v", day, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	resp := s.buildTop3(day, summary)

	if s.Cache != nil {
		ttl := 15 * time.Second
		if resp.Finalized {
			// Frozen tables only leave the cache via cleanup invalidation.
			ttl = time.Hour
		}
		if data, err := json.Marshal(resp); err == nil {
			if cerr := s.Cache.SetTop3(c.Context(), day, data, ttl); cerr != nil {
				log.Printf("[LEADERBOARD] Cache write failed for day %d: %v", day, cerr)
			}
		}
	}

	return c.JSON(resp)
}

// GetCurrentTop3 handles GET /leaderboard/current
func (s *LeaderboardService) GetCurrentTop3(c *fiber.Ctx) error {
	day := models.DayIndex(s.Clock.Now().Unix())
	return s.top3ForDay(c, day)
}

// GetDailyTop3 handles GET /leaderboard/:day
func (s *LeaderboardService) GetDailyTop3(c *fiber.Ctx) error {
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}
	return s.top3ForDay(c, day)
}

// GetDailySummary handles GET /leaderboard/:day/summary
func (s *LeaderboardService) GetDailySummary(c *fiber.Ctx) error {
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}

	summary, err := loadSummary(s.DB, day)
	if err != nil {
		log.Printf("DB Error fetching summary for day %d: %v", day, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if summary == nil {
		return c.JSON(fiber.Map{
			"day":               day,
			"total_players":     0,
			"total_collected":   0,
			"finalized":         false,
			"rewards_available": false,
		})
	}

	rewardsAvailable := summary.RewardsAvailable
	if !summary.Finalized {
		rewards, _ := s.Policy.Compute(summary.TotalCollected, summary.TotalPlayers)
		rewardsAvailable = rewards[0]+rewards[1]+rewards[2] > 0
	}

	return c.JSON(fiber.Map{
		"day":               summary.Day,
		"total_players":     summary.TotalPlayers,
		"total_collected":   summary.TotalCollected,
		"finalized":         summary.Finalized,
		"rewards_available": rewardsAvailable,
	})
}
