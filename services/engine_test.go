package services

import (
	"os"
	"testing"
	"time"

	"colour-arcade-backend/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// These tests exercise the full engine against a real Postgres. They are
// skipped unless TEST_DATABASE_URL points at a disposable database.

const testEntryFee = 100000

type testEngine struct {
	db         *gorm.DB
	clock      *clockwork.FakeClock
	settlement *SettlementService
	game       *GameService
	claims     *ClaimService
}

func newTestEngine(t *testing.T, policy RewardPolicy) *testEngine {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	allModels := []interface{}{
		&models.EngineState{},
		&models.GameSession{},
		&models.PlayerStats{},
		&models.DailySummary{},
		&models.DailyClaim{},
		&models.GameEvent{},
	}
	require.NoError(t, db.Migrator().DropTable(allModels...))
	require.NoError(t, db.AutoMigrate(allModels...))

	// Anchor the fake clock shortly after the start of day 100.
	clock := clockwork.NewFakeClockAt(time.Unix(100*models.DayLength+3600, 0))

	today := models.DayIndex(clock.Now().Unix())
	require.NoError(t, db.Create(&models.EngineState{
		ID:               models.EngineStateID,
		CurrentDay:       today,
		OldestTrackedDay: today,
	}).Error)

	settlement := NewSettlementService(db, policy, clock, nil)
	return &testEngine{
		db:         db,
		clock:      clock,
		settlement: settlement,
		game:       NewGameService(db, policy, clock, settlement, testEntryFee),
		claims:     NewClaimService(db, policy, clock, settlement),
	}
}

func percentageEngine(t *testing.T) *testEngine {
	return newTestEngine(t, PercentagePolicy{Window: DefaultClaimWindow})
}

func (e *testEngine) play(t *testing.T, player string, score uint32, level uint16) {
	t.Helper()
	session, err := e.game.StartSession(player, testEntryFee)
	require.NoError(t, err)
	require.NoError(t, e.game.SubmitScore(player, session.ID, score, level))
}

func (e *testEngine) state(t *testing.T) models.EngineState {
	t.Helper()
	var state models.EngineState
	require.NoError(t, e.db.First(&state, models.EngineStateID).Error)
	return state
}

func (e *testEngine) summary(t *testing.T, day int64) *models.DailySummary {
	t.Helper()
	summary, err := loadSummary(e.db, day)
	require.NoError(t, err)
	return summary
}

// advanceTo moves the fake clock to an absolute unix time.
func (e *testEngine) advanceTo(t *testing.T, unix int64) {
	t.Helper()
	delta := unix - e.clock.Now().Unix()
	require.Positive(t, delta)
	e.clock.Advance(time.Duration(delta) * time.Second)
}

// playNextDay rolls the clock into the next day and plays one throwaway
// game, which triggers finalization the way any entry point does.
func (e *testEngine) playNextDay(t *testing.T, player string) {
	t.Helper()
	e.clock.Advance(24 * time.Hour)
	e.play(t, player, 1, 1)
}

func TestStartSessionWrongFee(t *testing.T) {
	e := percentageEngine(t)

	_, err := e.game.StartSession("alice", testEntryFee-1)
	assert.ErrorIs(t, err, models.ErrWrongFee)

	// Nothing was recorded.
	assert.Equal(t, uint64(0), e.state(t).SessionCounter)
}

func TestSubmitScoreGuards(t *testing.T) {
	e := percentageEngine(t)

	session, err := e.game.StartSession("alice", testEntryFee)
	require.NoError(t, err)

	// Someone else's session, and a session that does not exist.
	assert.ErrorIs(t, e.game.SubmitScore("bob", session.ID, 100, 1), models.ErrNotYourSession)
	assert.ErrorIs(t, e.game.SubmitScore("alice", 9999, 100, 1), models.ErrNotYourSession)

	// Score above the percentage-variant cap.
	assert.ErrorIs(t, e.game.SubmitScore("alice", session.ID, 10_000_001, 1), models.ErrInvalidScore)

	require.NoError(t, e.game.SubmitScore("alice", session.ID, 0, 1)) // zero score is fine
	assert.ErrorIs(t, e.game.SubmitScore("alice", session.ID, 200, 1), models.ErrAlreadySubmitted)
}

func TestSubmitScoreExpiredSession(t *testing.T) {
	e := percentageEngine(t)

	session, err := e.game.StartSession("alice", testEntryFee)
	require.NoError(t, err)

	e.clock.Advance(time.Duration(models.MaxSessionAge+1) * time.Second)
	assert.ErrorIs(t, e.game.SubmitScore("alice", session.ID, 100, 1), models.ErrSessionExpired)
}

func TestSessionIDsAreMonotonic(t *testing.T) {
	e := percentageEngine(t)

	first, err := e.game.StartSession("alice", testEntryFee)
	require.NoError(t, err)
	second, err := e.game.StartSession("bob", testEntryFee)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
}

func TestResubmissionSameDayKeepsBest(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 200, 2)
	e.play(t, "alice", 400, 4)
	e.play(t, "alice", 300, 3)

	summary := e.summary(t, day)
	require.NotNil(t, summary)
	assert.Equal(t, "alice", summary.First.Player)
	assert.Equal(t, uint32(400), summary.First.Score)
	assert.True(t, summary.Second.Empty())
	assert.Equal(t, int64(1), summary.TotalPlayers)
	assert.Equal(t, int64(3*testEntryFee), summary.TotalCollected)

	var stats models.PlayerStats
	require.NoError(t, e.db.First(&stats, "player_id = ?", "alice").Error)
	assert.Equal(t, int64(3), stats.GamesPlayed)
	assert.Equal(t, uint32(400), stats.HighScore)
}

func TestFinalizationSplitsPoolAndReserve(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)

	// Still the current day: nothing claimable yet.
	assert.ErrorIs(t, e.claims.ClaimDailyReward("alice", day), models.ErrDayNotFinished)

	e.playNextDay(t, "alice")

	summary := e.summary(t, day)
	require.NotNil(t, summary)
	assert.True(t, summary.Finalized)
	assert.True(t, summary.RewardsAvailable)

	pool := int64(3 * testEntryFee)
	assert.Equal(t, pool*FirstPlaceBps/BpsDenominator, summary.Reward1)
	assert.Equal(t, pool*SecondPlaceBps/BpsDenominator, summary.Reward2)
	assert.Equal(t, pool*ThirdPlaceBps/BpsDenominator, summary.Reward3)

	state := e.state(t)
	houseCut := pool - summary.Reward1 - summary.Reward2 - summary.Reward3
	assert.Equal(t, houseCut, state.HouseReserve)
	assert.Equal(t, day+1, state.CurrentDay)

	canClaim, reward, rank := e.claims.CanClaimReward("alice", day)
	assert.True(t, canClaim)
	assert.Equal(t, summary.Reward1, reward)
	assert.Equal(t, 1, rank)
}

func TestClaimLifecycle(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "alice")

	summary := e.summary(t, day)
	poolBefore := e.state(t).TotalPrizePool

	require.NoError(t, e.claims.ClaimDailyReward("alice", day))

	state := e.state(t)
	assert.Equal(t, poolBefore-summary.Reward1, state.TotalPrizePool)

	var stats models.PlayerStats
	require.NoError(t, e.db.First(&stats, "player_id = ?", "alice").Error)
	assert.Equal(t, summary.Reward1, stats.TotalEarnings)

	// Double claim, and a claim by someone outside the podium.
	assert.ErrorIs(t, e.claims.ClaimDailyReward("alice", day), models.ErrAlreadyClaimed)
	assert.ErrorIs(t, e.claims.ClaimDailyReward("dave", day), models.ErrNotInTop3)

	canClaim, _, _ := e.claims.CanClaimReward("alice", day)
	assert.False(t, canClaim)
}

func TestUnderThresholdDayPaysNobody(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)

	e.clock.Advance(24 * time.Hour)
	require.NoError(t, e.settlement.FinalizeCurrentDay())

	summary := e.summary(t, day)
	assert.True(t, summary.Finalized)
	assert.False(t, summary.RewardsAvailable)
	assert.Equal(t, int64(0), summary.Reward1)

	// The whole day's take went to the house.
	state := e.state(t)
	assert.Equal(t, int64(2*testEntryFee), state.HouseReserve)
	assert.Equal(t, int64(0), state.TotalPrizePool)

	canClaim, _, _ := e.claims.CanClaimReward("alice", day)
	assert.False(t, canClaim)
	assert.ErrorIs(t, e.claims.ClaimDailyReward("alice", day), models.ErrNoRewardsAvailable)
}

func TestFinalizeCurrentDayWhileDayRunning(t *testing.T) {
	e := percentageEngine(t)
	assert.ErrorIs(t, e.settlement.FinalizeCurrentDay(), models.ErrDayNotOver)
}

func TestSubmissionAfterMidnightCountsForNewDay(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	session, err := e.game.StartSession("alice", testEntryFee)
	require.NoError(t, err)

	// Cross midnight between start and submit.
	e.advanceTo(t, (day+1)*models.DayLength+60)
	require.NoError(t, e.game.SubmitScore("alice", session.ID, 500, 15))

	stale := e.summary(t, day)
	require.NotNil(t, stale)
	assert.True(t, stale.Finalized)
	assert.True(t, stale.First.Empty())
	assert.Equal(t, int64(testEntryFee), stale.TotalCollected)

	fresh := e.summary(t, day+1)
	require.NotNil(t, fresh)
	assert.Equal(t, "alice", fresh.First.Player)
	assert.Equal(t, int64(1), fresh.TotalPlayers)
	assert.Equal(t, int64(0), fresh.TotalCollected)
}

func TestClaimWindowEdge(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "alice")

	finalizedAt := e.summary(t, day).FinalizedAt
	windowSecs := int64(DefaultClaimWindow.Seconds())

	// 6 days, 23 hours, 59 minutes after finalization: still claimable.
	e.advanceTo(t, finalizedAt+windowSecs-60)
	require.NoError(t, e.claims.ClaimDailyReward("alice", day))

	// One second past the window: expired.
	e.advanceTo(t, finalizedAt+windowSecs+1)
	assert.ErrorIs(t, e.claims.ClaimDailyReward("bob", day), models.ErrClaimWindowExpired)
}

func TestReclaimExpiredRewards(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "alice")

	summary := e.summary(t, day)
	unclaimed := summary.Reward1 + summary.Reward2 + summary.Reward3

	// Window still open on both the view and the mutation.
	canReclaim, _ := e.claims.CanReclaimExpiredRewards(day)
	assert.False(t, canReclaim)
	assert.ErrorIs(t, e.claims.ReclaimExpiredRewards(day), models.ErrClaimWindowNotExpired)

	// Alice claims hers; only bob's and carol's stay in the pool.
	require.NoError(t, e.claims.ClaimDailyReward("alice", day))
	unclaimed -= summary.Reward1

	e.advanceTo(t, summary.FinalizedAt+int64(DefaultClaimWindow.Seconds())+1)

	canReclaim, amount := e.claims.CanReclaimExpiredRewards(day)
	assert.True(t, canReclaim)
	assert.Equal(t, unclaimed, amount)

	reserveBefore := e.state(t).HouseReserve
	poolBefore := e.state(t).TotalPrizePool
	require.NoError(t, e.claims.ReclaimExpiredRewards(day))

	state := e.state(t)
	assert.Equal(t, reserveBefore+unclaimed, state.HouseReserve)
	assert.Equal(t, poolBefore-unclaimed, state.TotalPrizePool)

	// A day's expired pool can be swept at most once.
	assert.ErrorIs(t, e.claims.ReclaimExpiredRewards(day), models.ErrAlreadyClaimed)
}

func TestClaimMultipleDays(t *testing.T) {
	e := percentageEngine(t)

	// Empty list is a no-op.
	require.NoError(t, e.claims.ClaimMultipleDays("alice", nil))

	var days []int64
	var want int64
	for i := 0; i < 2; i++ {
		day := e.state(t).CurrentDay
		days = append(days, day)

		e.play(t, "alice", 500, 15)
		e.play(t, "bob", 400, 12)
		e.play(t, "carol", 300, 10)
		e.playNextDay(t, "dave")

		want += e.summary(t, day).Reward1
	}

	require.NoError(t, e.claims.ClaimMultipleDays("alice", days))

	var stats models.PlayerStats
	require.NoError(t, e.db.First(&stats, "player_id = ?", "alice").Error)
	assert.Equal(t, want, stats.TotalEarnings)
}

func TestClaimMultipleDaysIsAtomic(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "dave")

	// Second element fails, so the first must roll back too.
	err := e.claims.ClaimMultipleDays("alice", []int64{day, day})
	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)

	var count int64
	require.NoError(t, e.db.Model(&models.DailyClaim{}).
		Where("player_id = ?", "alice").Count(&count).Error)
	assert.Equal(t, int64(0), count)

	var stats models.PlayerStats
	require.NoError(t, e.db.First(&stats, "player_id = ?", "alice").Error)
	assert.Equal(t, int64(0), stats.TotalEarnings)
}

func TestCleanupOldDays(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "dave")

	assert.ErrorIs(t, e.settlement.CleanupOldDays(5, 4), models.ErrInvalidRange)
	assert.ErrorIs(t, e.settlement.CleanupOldDays(0, 10), models.ErrMaxTenDaysPerCall)
	assert.ErrorIs(t, e.settlement.CleanupOldDays(day, day+1), models.ErrCantCleanupCurrentDay)

	// Claim window still open with rewards outstanding: refuse to purge.
	assert.ErrorIs(t, e.settlement.CleanupOldDays(day, day), models.ErrClaimWindowOpen)

	require.NoError(t, e.claims.ClaimDailyReward("alice", day))
	require.NoError(t, e.claims.ClaimDailyReward("bob", day))
	require.NoError(t, e.claims.ClaimDailyReward("carol", day))

	// Everything paid out; the summary may now be purged.
	require.NoError(t, e.settlement.CleanupOldDays(day, day))
	assert.Nil(t, e.summary(t, day))
	assert.Equal(t, day+1, e.state(t).OldestTrackedDay)

	// Claim records survive the purge.
	var count int64
	require.NoError(t, e.db.Model(&models.DailyClaim{}).
		Where("day = ?", day).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestFixedPolicyPoolAccounting(t *testing.T) {
	e := newTestEngine(t, FixedRewardPolicy{First: 1000000, Second: 500000, Third: 250000})
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.playNextDay(t, "bob")

	summary := e.summary(t, day)
	require.NotNil(t, summary)
	assert.True(t, summary.Finalized)
	assert.Equal(t, int64(1000000), summary.Reward1)
	// Empty slots earn nothing even under fixed rewards.
	assert.Equal(t, int64(0), summary.Reward2)
	assert.Equal(t, int64(0), summary.Reward3)
	// Fixed variant takes no house cut at finalization.
	assert.Equal(t, int64(0), e.state(t).HouseReserve)

	// Two entry fees in the pool cannot cover the first-place reward.
	assert.ErrorIs(t, e.claims.ClaimDailyReward("alice", day), models.ErrInsufficientPool)

	require.NoError(t, e.claims.AddToPrizePool(2000000))
	require.NoError(t, e.claims.ClaimDailyReward("alice", day))

	// Fixed rewards never expire.
	e.clock.Advance(30 * 24 * time.Hour)
	assert.ErrorIs(t, e.claims.ReclaimExpiredRewards(day), models.ErrClaimWindowNotExpired)
}

func TestOwnerWithdrawals(t *testing.T) {
	e := percentageEngine(t)

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)

	pool := e.state(t).TotalPrizePool
	assert.ErrorIs(t, e.claims.WithdrawExcess(pool+1), models.ErrExceedsPool)
	require.NoError(t, e.claims.WithdrawExcess(pool))
	assert.Equal(t, int64(0), e.state(t).TotalPrizePool)

	assert.ErrorIs(t, e.claims.WithdrawReserve(1), models.ErrExceedsReserve)
}

func TestEventsAreEmitted(t *testing.T) {
	e := percentageEngine(t)
	day := e.state(t).CurrentDay

	e.play(t, "alice", 500, 15)
	e.play(t, "bob", 400, 12)
	e.play(t, "carol", 300, 10)
	e.playNextDay(t, "alice")
	require.NoError(t, e.claims.ClaimDailyReward("alice", day))

	for _, eventType := range []string{
		models.EventGameStarted,
		models.EventGameCompleted,
		models.EventHighScoreSet,
		models.EventDayFinalized,
		models.EventReserveUpdated,
		models.EventDailyRewardPaid,
	} {
		var count int64
		require.NoError(t, e.db.Model(&models.GameEvent{}).
			Where("type = ?", eventType).Count(&count).Error)
		assert.Positive(t, count, "expected at least one %s event", eventType)
	}
}
