package services

import (
	"log"
	"os"
	"strconv"
	"time"
)

// RewardPolicy decides how a finalized day's pool is split between the
// three podium ranks and the house. Selected once at startup; the ranking
// and settlement core is identical under both policies.
type RewardPolicy interface {
	// Compute returns the reward per rank and the house cut for a day that
	// collected dailyPool from players distinct submitters.
	Compute(dailyPool int64, players int64) (rewards [3]int64, houseCut int64)
	// MaxScore is the highest accepted submission score; 0 means unbounded.
	MaxScore() uint32
	// ClaimWindow is how long winners have to claim after finalization;
	// 0 means claims never expire.
	ClaimWindow() time.Duration
}

/// Percentage variant (cUSD deployment): basis points of the day's own pool,
// house keeps the remainder. Days with too few players pay nobody.
const (
	FirstPlaceBps  = 3000
	SecondPlaceBps = 2500
	ThirdPlaceBps  = 1500
	BpsDenominator = 10000

	MinPlayersForRewards = 3
	PercentMaxScore      = 10_000_000
	DefaultClaimWindow   = 7 * 24 * time.Hour
)

type PercentagePolicy struct {
	Window time.Duration
}

func (p PercentagePolicy) Compute(dailyPool int64, players int64) ([3]int64, int64) {
	if players < MinPlayersForRewards {
		return [3]int64{}, dailyPool
	}
	rewards := [3]int64{
		dailyPool * FirstPlaceBps / BpsDenominator,
		dailyPool * SecondPlaceBps / BpsDenominator,
		dailyPool * ThirdPlaceBps / BpsDenominator,
	}
	return rewards, dailyPool - rewards[0] - rewards[1] - rewards[2]
}

func (p PercentagePolicy) MaxScore() uint32 { return PercentMaxScore }

func (p PercentagePolicy) ClaimWindow() time.Duration { return p.Window }

/// Fixed variant: constant payouts per rank regardless of the day's pool.
// The pool is kept solvent by owner top-ups; there is no house cut and no
// claim expiry.
type FixedRewardPolicy struct {
	First  int64
	Second int64
	Third  int64
}

func (p FixedRewardPolicy) Compute(dailyPool int64, players int64) ([3]int64, int64) {
	return [3]int64{p.First, p.Second, p.Third}, 0
}

func (p FixedRewardPolicy) MaxScore() uint32 { return 0 }

func (p FixedRewardPolicy) ClaimWindow() time.Duration { return 0 }

// NewRewardPolicyFromEnv builds the policy from REWARD_MODE
// ("percentage" default, or "fixed"). Fixed payouts default to multiples of
// the entry fee unless overridden.
func NewRewardPolicyFromEnv(entryFee int64) RewardPolicy {
	mode := os.Getenv("REWARD_MODE")
	switch mode {
	case "", "percentage":
		return PercentagePolicy{Window: DefaultClaimWindow}
	case "fixed":
		return FixedRewardPolicy{
			First:  envInt64("FIRST_PLACE_REWARD", entryFee*10),
			Second: envInt64("SECOND_PLACE_REWARD", entryFee*5),
			Third:  envInt64("THIRD_PLACE_REWARD", entryFee*5/2),
		}
	default:
		log.Fatalf("unknown REWARD_MODE %q (want fixed or percentage)", mode)
		return nil
	}
}

func envInt64(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Fatalf("invalid %s=%q: %v", key, raw, err)
	}
	return v
}
