package services

import (
	"errors"
	"log"
	"strconv"

	"colour-arcade-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ClaimService is the reward ledger: it pays winners of finalized days,
// enforces the claim window, and handles the owner-side money movements
// (top-ups, withdrawals, expired-reward sweeps).
type ClaimService struct {
	DB         *gorm.DB
	Policy     RewardPolicy
	Clock      clockwork.Clock
	Settlement *SettlementService
}

func NewClaimService(db *gorm.DB, policy RewardPolicy, clock clockwork.Clock, settlement *SettlementService) *ClaimService {
	return &ClaimService{DB: db, Policy: policy, Clock: clock, Settlement: settlement}
}

// evaluateClaim runs the claimability checks for (player, day) against the
// given snapshot of state and returns the frozen reward and rank. The same
// checks back both the view form (errors collapsed to "not claimable") and
// the hard-failing claim path.
func (s *ClaimService) evaluateClaim(tx *gorm.DB, currentDay int64, playerID string, day int64) (int64, int, error) {
	if day >= currentDay {
		return 0, 0, models.ErrDayNotFinished
	}

	summary, err := loadSummary(tx, day)
	if err != nil {
		return 0, 0, err
	}
	// A missing summary is either a day nobody played or a purged one;
	// neither has anything claimable.
	if summary == nil || !summary.Finalized {
		return 0, 0, models.ErrDayNotFinished
	}

	rank := summary.RankOf(playerID)
	if rank == 0 {
		return 0, 0, models.ErrNotInTop3
	}
	if !summary.RewardsAvailable {
		return 0, 0, models.ErrNoRewardsAvailable
	}
	reward := summary.RewardForRank(rank)
	if reward == 0 {
		return 0, 0, models.ErrNoRewardsAvailable
	}

	var claimed int64
	err = tx.Model(&models.DailyClaim{}).
		Where("day = ? AND player_id = ?", day, playerID).
		Count(&claimed).Error
	if err != nil {
		return 0, 0, err
	}
	if claimed > 0 {
		return 0, 0, models.ErrAlreadyClaimed
	}

	if window := int64(s.Policy.ClaimWindow().Seconds()); window > 0 {
		if s.Clock.Now().Unix() > summary.FinalizedAt+window {
			return 0, 0, models.ErrClaimWindowExpired
		}
	}

	return reward, rank, nil
}

// CanClaimReward is the fail-closed view form: (canClaim, reward, rank).
func (s *ClaimService) CanClaimReward(playerID string, day int64) (bool, int64, int) {
	var state models.EngineState
	if err := s.DB.First(&state, models.EngineStateID).Error; err != nil {
		return false, 0, 0
	}

	reward, rank, err := s.evaluateClaim(s.DB, state.CurrentDay, playerID, day)
	if err != nil {
		return false, 0, 0
	}
	return true, reward, rank
}

// claimOne applies a single day's claim inside the caller's transaction.
func (s *ClaimService) claimOne(tx *gorm.DB, state *models.EngineState, playerID string, day int64) error {
	reward, rank, err := s.evaluateClaim(tx, state.CurrentDay, playerID, day)
	if err != nil {
		return err
	}
	if state.TotalPrizePool < reward {
		return models.ErrInsufficientPool
	}

	now := s.Clock.Now().Unix()
	claim := models.DailyClaim{
		Day:       day,
		PlayerID:  playerID,
		Amount:    reward,
		Rank:      rank,
		ClaimedAt: now,
	}
	if err := tx.Create(&claim).Error; err != nil {
		return err
	}

	state.TotalPrizePool -= reward

	var stats models.PlayerStats
	err = tx.First(&stats, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.PlayerStats{PlayerID: playerID}
	} else if err != nil {
		return err
	}
	stats.TotalEarnings += reward
	if err := tx.Save(&stats).Error; err != nil {
		return err
	}

	return emitEvent(tx, now, models.EventDailyRewardPaid, fiber.Map{
		"player": playerID,
		"rank":   rank,
		"reward": reward,
		"day":    day,
	})
}

// ClaimDailyReward pays out one finalized day to the caller.
func (s *ClaimService) ClaimDailyReward(playerID string, day int64) error {
	return s.ClaimMultipleDays(playerID, []int64{day})
}

// ClaimMultipleDays pays out the listed days in order, all-or-nothing.
// An empty list is a no-op.
func (s *ClaimService) ClaimMultipleDays(playerID string, days []int64) error {
	if len(days) == 0 {
		return nil
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.Settlement.advanceDay(tx, state); err != nil {
			return err
		}

		for _, day := range days {
			if err := s.claimOne(tx, state, playerID, day); err != nil {
				return err
			}
		}

		return tx.Save(state).Error
	})
}

// canReclaim checks the sweep guard for a day and returns the outstanding
// amount when the window has expired.
func (s *ClaimService) canReclaim(tx *gorm.DB, day int64) (int64, error) {
	summary, err := loadSummary(tx, day)
	if err != nil {
		return 0, err
	}
	if summary == nil || !summary.Finalized {
		return 0, models.ErrDayNotFinished
	}
	if summary.ExpiredReclaimed {
		return 0, models.ErrAlreadyClaimed
	}

	window := int64(s.Policy.ClaimWindow().Seconds())
	if window == 0 || s.Clock.Now().Unix() <= summary.FinalizedAt+window {
		return 0, models.ErrClaimWindowNotExpired
	}

	return unclaimedRewards(tx, summary)
}

// CanReclaimExpiredRewards is the view mirror of ReclaimExpiredRewards.
func (s *ClaimService) CanReclaimExpiredRewards(day int64) (bool, int64) {
	amount, err := s.canReclaim(s.DB, day)
	if err != nil {
		return false, 0
	}
	return true, amount
}

// ReclaimExpiredRewards moves a day's unclaimed, expired rewards into the
// house reserve. Runs at most once per day; a second sweep fails with
// AlreadyClaimed.
func (s *ClaimService) ReclaimExpiredRewards(day int64) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.Settlement.advanceDay(tx, state); err != nil {
			return err
		}

		amount, err := s.canReclaim(tx, day)
		if err != nil {
			return err
		}

		summary, err := loadSummary(tx, day)
		if err != nil {
			return err
		}
		summary.ExpiredReclaimed = true
		if err := tx.Save(summary).Error; err != nil {
			return err
		}

		state.TotalPrizePool -= amount
		state.HouseReserve += amount

		now := s.Clock.Now().Unix()
		if err := emitEvent(tx, now, models.EventExpiredFundsReclaimed, fiber.Map{
			"day":    day,
			"amount": amount,
		}); err != nil {
			return err
		}
		if err := emitEvent(tx, now, models.EventReserveUpdated, fiber.Map{
			"reserve": state.HouseReserve,
		}); err != nil {
			return err
		}

		log.Printf("[CLAIMS] Reclaimed %d of expired rewards from day %d", amount, day)
		return tx.Save(state).Error
	})
}

// AddToPrizePool tops up the pool from the operator.
func (s *ClaimService) AddToPrizePool(amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidRange
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if err := s.Settlement.advanceDay(tx, state); err != nil {
			return err
		}

		state.TotalPrizePool += amount
		if err := emitEvent(tx, s.Clock.Now().Unix(), models.EventPrizePoolUpdated, fiber.Map{
			"pool": state.TotalPrizePool,
		}); err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

// WithdrawExcess takes funds back out of the prize pool.
func (s *ClaimService) WithdrawExcess(amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidRange
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if amount > state.TotalPrizePool {
			return models.ErrExceedsPool
		}

		state.TotalPrizePool -= amount
		if err := emitEvent(tx, s.Clock.Now().Unix(), models.EventPrizePoolUpdated, fiber.Map{
			"pool": state.TotalPrizePool,
		}); err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

// WithdrawReserve pays out accumulated house funds.
func (s *ClaimService) WithdrawReserve(amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidRange
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		if amount > state.HouseReserve {
			return models.ErrExceedsReserve
		}

		state.HouseReserve -= amount
		if err := emitEvent(tx, s.Clock.Now().Unix(), models.EventReserveUpdated, fiber.Map{
			"reserve": state.HouseReserve,
		}); err != nil {
			return err
		}
		return tx.Save(state).Error
	})
}

// --- Fiber handlers ---

func parseDayParam(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("day"), 10, 64)
}

// Claimable handles GET /s/rewards/:day/claimable
func (s *ClaimService) Claimable(c *fiber.Ctx) error {
	playerID := c.Locals("user_id").(string)
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}

	canClaim, reward, rank := s.CanClaimReward(playerID, day)
	return c.JSON(fiber.Map{
		"can_claim": canClaim,
		"reward":    reward,
		"rank":      rank,
	})
}

// Claim handles POST /s/rewards/:day/claim
func (s *ClaimService) Claim(c *fiber.Ctx) error {
	playerID := c.Locals("user_id").(string)
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}

	if err := s.ClaimDailyReward(playerID, day); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "reward claimed", "day": day})
}

// ClaimBatch handles POST /s/rewards/claim-batch
func (s *ClaimService) ClaimBatch(c *fiber.Ctx) error {
	playerID := c.Locals("user_id").(string)

	var req struct {
		Days []int64 `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.ClaimMultipleDays(playerID, req.Days); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "rewards claimed", "days": req.Days})
}

// CanReclaim handles GET /s/admin/rewards/:day/can-reclaim
func (s *ClaimService) CanReclaim(c *fiber.Ctx) error {
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}

	canReclaim, amount := s.CanReclaimExpiredRewards(day)
	return c.JSON(fiber.Map{"can_reclaim": canReclaim, "amount": amount})
}

// Reclaim handles POST /s/admin/rewards/:day/reclaim
func (s *ClaimService) Reclaim(c *fiber.Ctx) error {
	day, err := parseDayParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid day"})
	}

	if err := s.ReclaimExpiredRewards(day); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "expired rewards reclaimed", "day": day})
}

func (s *ClaimService) parseAmount(c *fiber.Ctx) (int64, error) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return 0, err
	}
	return req.Amount, nil
}

// PoolAdd handles POST /s/admin/pool/add
func (s *ClaimService) PoolAdd(c *fiber.Ctx) error {
	amount, err := s.parseAmount(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.AddToPrizePool(amount); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "prize pool updated"})
}

// PoolWithdraw handles POST /s/admin/pool/withdraw
func (s *ClaimService) PoolWithdraw(c *fiber.Ctx) error {
	amount, err := s.parseAmount(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.WithdrawExcess(amount); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "withdrawn from pool"})
}

// ReserveWithdraw handles POST /s/admin/reserve/withdraw
func (s *ClaimService) ReserveWithdraw(c *fiber.Ctx) error {
	amount, err := s.parseAmount(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := s.WithdrawReserve(amount); err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(fiber.Map{"message": "withdrawn from reserve"})
}
