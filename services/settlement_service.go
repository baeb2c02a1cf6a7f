package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"colour-arcade-backend/cache"
	"colour-arcade-backend/models"
	"colour-arcade-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxCleanupDays bounds one cleanupOldDays call.
const MaxCleanupDays = 10

// SettlementService owns the day state machine: rollover detection,
// finalization, the cleanup watermark, and the reserve movements that
// happen at day boundaries.
type SettlementService struct {
	DB     *gorm.DB
	Policy RewardPolicy
	Clock  clockwork.Clock
	Cache  *cache.LeaderboardCache
}

func NewSettlementService(db *gorm.DB, policy RewardPolicy, clock clockwork.Clock, lbCache *cache.LeaderboardCache) *SettlementService {
	return &SettlementService{DB: db, Policy: policy, Clock: clock, Cache: lbCache}
}

// lockState loads the singleton engine state FOR UPDATE. Every mutating
// operation goes through here first; the row lock is the serialization
// point for the whole engine.
func lockState(tx *gorm.DB) (*models.EngineState, error) {
	var state models.EngineState
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&state, models.EngineStateID).Error
	if err != nil {
		return nil, fmt.Errorf("engine state row missing: %w", err)
	}
	return &state, nil
}

// emitEvent writes an outbox row inside the caller's transaction.
func emitEvent(tx *gorm.DB, now int64, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&models.GameEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   string(body),
		CreatedAt: now,
	}).Error
}

func loadSummary(tx *gorm.DB, day int64) (*models.DailySummary, error) {
	var summary models.DailySummary
	err := tx.First(&summary, "day = ?", day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func loadOrCreateSummary(tx *gorm.DB, day int64) (*models.DailySummary, error) {
	summary, err := loadSummary(tx, day)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		summary = &models.DailySummary{Day: day}
		if err := tx.Create(summary).Error; err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// advanceDay is the maybe-advance step run at the top of every mutating
// entry point. If the wall clock has crossed into a later day it freezes
// the stale day's ranking, locks in reward amounts, routes the house cut
// to the reserve and moves currentDay forward. A day nobody played needs
// no finalization.
func (s *SettlementService) advanceDay(tx *gorm.DB, state *models.EngineState) error {
	now := s.Clock.Now().Unix()
	today := models.DayIndex(now)
	if today <= state.CurrentDay {
		return nil
	}

	staleDay := state.CurrentDay
	summary, err := loadSummary(tx, staleDay)
	if err != nil {
		return err
	}

	if summary != nil && !summary.Finalized {
		rewards, houseCut := s.Policy.Compute(summary.TotalCollected, summary.TotalPlayers)
		slots := summary.Slots()
		for i := range rewards {
			if slots[i].Empty() {
				rewards[i] = 0
			}
		}

		summary.Reward1, summary.Reward2, summary.Reward3 = rewards[0], rewards[1], rewards[2]
		summary.RewardsAvailable = rewards[0]+rewards[1]+rewards[2] > 0
		summary.Finalized = true
		summary.FinalizedAt = now
		if err := tx.Save(summary).Error; err != nil {
			return err
		}

		if houseCut > 0 {
			state.TotalPrizePool -= houseCut
			state.HouseReserve += houseCut
			if err := emitEvent(tx, now, models.EventReserveUpdated, fiber.Map{
				"reserve": state.HouseReserve,
			}); err != nil {
				return err
			}
		}

		if err := emitEvent(tx, now, models.EventDayFinalized, fiber.Map{
			"day":     staleDay,
			"first":   slots[0].Player,
			"second":  slots[1].Player,
			"third":   slots[2].Player,
			"rewards": rewards,
		}); err != nil {
			return err
		}

		s.invalidateCache(staleDay)
		log.Printf("[SETTLEMENT] Day %d finalized: %d players, pool %d, rewards %v",
			staleDay, summary.TotalPlayers, summary.TotalCollected, rewards)
	}

	state.CurrentDay = today
	return nil
}

func (s *SettlementService) invalidateCache(day int64) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(context.Background(), day); err != nil {
		log.Printf("[SETTLEMENT] Cache invalidation failed for day %d: %v", day, err)
	}
}

// FinalizeCurrentDay freezes the stale day on demand. DayNotOver while the
// tracked day is still in progress.
func (s *SettlementService) FinalizeCurrentDay() error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if models.DayIndex(s.Clock.Now().Unix()) <= state.CurrentDay {
			return models.ErrDayNotOver
		}
		if err := s.advanceDay(tx, state); err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

// FinalizeIfDue is the scheduler entry point: same rollover, but quietly a
// no-op while the day is still running.
func (s *SettlementService) FinalizeIfDue() error {
	err := s.FinalizeCurrentDay()
	if errors.Is(err, models.ErrDayNotOver) {
		return nil
	}
	return err
}

// unclaimedRewards sums the frozen rewards of ranked players who have not
// claimed yet. Used both by the expiry sweep and the cleanup guard.
func unclaimedRewards(tx *gorm.DB, summary *models.DailySummary) (int64, error) {
	var total int64
	for rank, entry := range summary.Slots() {
		if entry.Empty() {
			continue
		}
		reward := summary.RewardForRank(rank + 1)
		if reward == 0 {
			continue
		}
		var count int64
		err := tx.Model(&models.DailyClaim{}).
			Where("day = ? AND player_id = ?", summary.Day, entry.Player).
			Count(&count).Error
		if err != nil {
			return 0, err
		}
		if count == 0 {
			total += reward
		}
	}
	return total, nil
}

// CleanupOldDays purges summary storage for an inclusive day range.
// Claim records and already-settled amounts survive; a finalized day whose
// claim window is still open (with rewards outstanding) cannot be purged.
func (s *SettlementService) CleanupOldDays(fromDay, toDay int64) error {
	if fromDay > toDay {
		return models.ErrInvalidRange
	}
	if toDay-fromDay+1 > MaxCleanupDays {
		return models.ErrMaxTenDaysPerCall
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.advanceDay(tx, state); err != nil {
			return err
		}
		if toDay >= state.CurrentDay {
			return models.ErrCantCleanupCurrentDay
		}

		now := s.Clock.Now().Unix()
		window := int64(s.Policy.ClaimWindow().Seconds())

		for day := fromDay; day <= toDay; day++ {
			summary, err := loadSummary(tx, day)
			if err != nil {
				return err
			}
			if summary == nil {
				continue
			}

			if summary.Finalized && summary.RewardsAvailable && !summary.ExpiredReclaimed && window > 0 &&
				now <= summary.FinalizedAt+window {
				outstanding, err := unclaimedRewards(tx, summary)
				if err != nil {
					return err
				}
				if outstanding > 0 {
					return models.ErrClaimWindowOpen
				}
			}

			if utils.ArchiveEnabled() {
				data, err := json.Marshal(summary)
				if err != nil {
					return err
				}
				key, err := utils.ArchiveDailySummary(day, data)
				if err != nil {
					return err
				}
				log.Printf("[SETTLEMENT] Archived day %d summary to %s", day, key)
			}

			if err := tx.Delete(&models.DailySummary{}, "day = ?", day).Error; err != nil {
				return err
			}
			s.invalidateCache(day)
		}

		if toDay+1 > state.OldestTrackedDay {
			state.OldestTrackedDay = toDay + 1
		}
		return tx.Save(state).Error
	})
}

// --- Fiber handlers (admin routes) ---

// Finalize handles POST /s/admin/finalize
func (s *SettlementService) Finalize(c *fiber.Ctx) error {
	if err := s.FinalizeCurrentDay(); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "day finalized"})
}

// Cleanup handles POST /s/admin/cleanup
func (s *SettlementService) Cleanup(c *fiber.Ctx) error {
	var req struct {
		FromDay int64 `json:"from_day"`
		ToDay   int64 `json:"to_day"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.CleanupOldDays(req.FromDay, req.ToDay); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "days cleaned up", "from_day": req.FromDay, "to_day": req.ToDay})
}

// Status handles GET /status
func (s *SettlementService) Status(c *fiber.Ctx) error {
	var state models.EngineState
	if err := s.DB.First(&state, models.EngineStateID).Error; err != nil {
		log.Printf("DB Error reading engine state: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read engine state"})
	}
	return c.JSON(state)
}
