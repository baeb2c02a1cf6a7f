package services

import (
	"context"
	"errors"
	"log"
	"strconv"

	"colour-arcade-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// GameService is the session registry: it takes paid session starts,
// validates score submissions and feeds completed runs into the daily
// ranking table.
type GameService struct {
	DB         *gorm.DB
	Policy     RewardPolicy
	Clock      clockwork.Clock
	Settlement *SettlementService
	EntryFee   int64
}

func NewGameService(db *gorm.DB, policy RewardPolicy, clock clockwork.Clock, settlement *SettlementService, entryFee int64) *GameService {
	return &GameService{DB: db, Policy: policy, Clock: clock, Settlement: settlement, EntryFee: entryFee}
}

// StartSession opens a paid session for a player. The fee must match
// exactly; it goes into the prize pool and counts toward the current day's
// collected total.
func (s *GameService) StartSession(playerID string, feePaid int64) (*models.GameSession, error) {
	if feePaid != s.EntryFee {
		return nil, models.ErrWrongFee
	}

	var session *models.GameSession
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.Settlement.advanceDay(tx, state); err != nil {
			return err
		}

		now := s.Clock.Now().Unix()
		state.SessionCounter++
		session = &models.GameSession{
			ID:        state.SessionCounter,
			PlayerID:  playerID,
			StartTime: now,
			Day:       state.CurrentDay,
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}

		summary, err := loadOrCreateSummary(tx, state.CurrentDay)
		if err != nil {
			return err
		}
		summary.TotalCollected += feePaid
		if err := tx.Save(summary).Error; err != nil {
			return err
		}

		state.TotalPrizePool += feePaid

		if err := emitEvent(tx, now, models.EventGameStarted, fiber.Map{
			"player":     playerID,
			"session_id": session.ID,
			"day":        state.CurrentDay,
		}); err != nil {
			return err
		}

		return tx.Save(state).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitScore completes a session exactly once and offers the score to the
// ranking table of the day the submission lands on. A submission made just
// after midnight for a session started just before counts toward the new
// day, since the rollover runs first.
func (s *GameService) SubmitScore(playerID string, sessionID uint64, score uint32, level uint16) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.Settlement.advanceDay(tx, state); err != nil {
			return err
		}

		var session models.GameSession
		err = tx.First(&session, "id = ?", sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A session that does not exist belongs to nobody.
			return models.ErrNotYourSession
		}
		if err != nil {
			return err
		}
		if session.PlayerID != playerID {
			return models.ErrNotYourSession
		}
		if session.Completed {
			return models.ErrAlreadySubmitted
		}

		now := s.Clock.Now().Unix()
		if now-session.StartTime > models.MaxSessionAge {
			return models.ErrSessionExpired
		}
		if maxScore := s.Policy.MaxScore(); maxScore > 0 && score > maxScore {
			return models.ErrInvalidScore
		}

		day := state.CurrentDay

		var priorToday int64
		err = tx.Model(&models.GameSession{}).
			Where("day = ? AND player_id = ? AND completed = ?", day, playerID, true).
			Count(&priorToday).Error
		if err != nil {
			return err
		}

		session.Completed = true
		session.Score = score
		session.Level = level
		session.Day = day
		if err := tx.Save(&session).Error; err != nil {
			return err
		}

		if err := s.recordPlayerStats(tx, playerID, score, now); err != nil {
			return err
		}

		summary, err := loadOrCreateSummary(tx, day)
		if err != nil {
			return err
		}
		if priorToday == 0 {
			summary.TotalPlayers++
		}
		changed := summary.Offer(playerID, score, level)
		if err := tx.Save(summary).Error; err != nil {
			return err
		}
		if changed && s.Settlement.Cache != nil {
			if cerr := s.Settlement.Cache.Invalidate(context.Background(), day); cerr != nil {
				log.Printf("[GAME] Cache invalidation failed for day %d: %v", day, cerr)
			}
		}

		if err := emitEvent(tx, now, models.EventGameCompleted, fiber.Map{
			"player":     playerID,
			"session_id": session.ID,
			"score":      score,
			"level":      level,
			"day":        day,
		}); err != nil {
			return err
		}

		return tx.Save(state).Error
	})
}

// recordPlayerStats bumps lifetime counters and emits HighScoreSet when a
// submission beats the player's previous best.
func (s *GameService) recordPlayerStats(tx *gorm.DB, playerID string, score uint32, now int64) error {
	var stats models.PlayerStats
	err := tx.First(&stats, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.PlayerStats{PlayerID: playerID}
	} else if err != nil {
		return err
	}

	stats.GamesPlayed++
	stats.LastPlayTime = now
	newHigh := score > stats.HighScore
	if newHigh {
		stats.HighScore = score
	}
	if err := tx.Save(&stats).Error; err != nil {
		return err
	}

	if newHigh && score > 0 {
		return emitEvent(tx, now, models.EventHighScoreSet, fiber.Map{
			"player": playerID,
			"score":  score,
		})
	}
	return nil
}

// --- Fiber handlers ---

// StartGame handles POST /s/sessions
func (s *GameService) StartGame(c *fiber.Ctx) error {
	playerID := c.Locals("user_id").(string)

	var req struct {
		FeePaid int64 `json:"fee_paid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := s.StartSession(playerID, req.FeePaid)
	if err != nil {
		return respondDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": session.ID,
		"day":        session.Day,
	})
}

// SubmitSessionScore handles POST /s/sessions/:id/score
func (s *GameService) SubmitSessionScore(c *fiber.Ctx) error {
	playerID := c.Locals("user_id").(string)

	sessionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	var req struct {
		Score uint32 `json:"score"`
		Level uint16 `json:"level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.SubmitScore(playerID, sessionID, req.Score, req.Level); err != nil {
		return respondDomainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "score submitted", "session_id": sessionID})
}

// GetSession handles GET /sessions/:id
func (s *GameService) GetSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	var session models.GameSession
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		log.Printf("DB Error fetching session %d: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(session)
}

// GetPlayerStats handles GET /players/:id/stats
func (s *GameService) GetPlayerStats(c *fiber.Ctx) error {
	playerID := c.Params("id")

	var stats models.PlayerStats
	err := s.DB.First(&stats, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// A player who never played has zero stats, not a 404.
		stats = models.PlayerStats{PlayerID: playerID}
	} else if err != nil {
		log.Printf("DB Error fetching stats for %s: %v", playerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(stats)
}
