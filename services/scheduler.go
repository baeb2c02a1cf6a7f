package services

import (
	"log"
	"time"

	"colour-arcade-backend/models"

	"github.com/go-co-op/gocron/v2"
)

// StartSettlementScheduler runs the clock-driven settlement work: the
// minutely rollover check (so finalization does not wait for the next
// player action) and an hourly sweep that flags days whose claim window
// has expired with rewards still outstanding.
func (s *SettlementService) StartSettlementScheduler() {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		log.Fatalf("failed to create settlement scheduler: %v", err)
	}
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if err := s.FinalizeIfDue(); err != nil {
				log.Printf("[Scheduler] Finalize check failed: %v", err)
			}
		}),
	)

	window := int64(s.Policy.ClaimWindow().Seconds())
	if window == 0 {
		return
	}

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			cutoff := s.Clock.Now().Unix() - window
			var days []models.DailySummary
			err := s.DB.
				Where("finalized = ? AND rewards_available = ? AND expired_reclaimed = ? AND finalized_at < ?",
					true, true, false, cutoff).
				Find(&days).Error
			if err != nil {
				log.Printf("[Scheduler] Expiry sweep query failed: %v", err)
				return
			}

			for _, summary := range days {
				outstanding, err := unclaimedRewards(s.DB, &summary)
				if err != nil {
					log.Printf("[Scheduler] Expiry sweep failed for day %d: %v", summary.Day, err)
					continue
				}
				if outstanding > 0 {
					log.Printf("[Scheduler] Day %d has %d in expired unclaimed rewards ready to reclaim",
						summary.Day, outstanding)
				}
			}
		}),
	)
}
