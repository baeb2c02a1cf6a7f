package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentageSplitAddsUp(t *testing.T) {
	policy := PercentagePolicy{Window: DefaultClaimWindow}

	// Three players each paying 100000: pool = 300000.
	rewards, houseCut := policy.Compute(300000, 3)

	assert.Equal(t, int64(90000), rewards[0]) // 30%
	assert.Equal(t, int64(75000), rewards[1]) // 25%
	assert.Equal(t, int64(45000), rewards[2]) // 15%
	assert.Equal(t, int64(90000), houseCut)   // 30%
	assert.Equal(t, int64(300000), rewards[0]+rewards[1]+rewards[2]+houseCut)
}

func TestPercentageBelowThresholdAllToHouse(t *testing.T) {
	policy := PercentagePolicy{Window: DefaultClaimWindow}

	rewards, houseCut := policy.Compute(200000, 2)

	assert.Equal(t, [3]int64{}, rewards)
	assert.Equal(t, int64(200000), houseCut)
}

func TestPercentageRoundingRemainderStaysWithHouse(t *testing.T) {
	policy := PercentagePolicy{Window: DefaultClaimWindow}

	// A pool that does not divide evenly by basis points.
	rewards, houseCut := policy.Compute(333, 3)

	total := rewards[0] + rewards[1] + rewards[2] + houseCut
	assert.Equal(t, int64(333), total)
	assert.GreaterOrEqual(t, houseCut, int64(0))
}

func TestPercentagePolicyLimits(t *testing.T) {
	policy := PercentagePolicy{Window: DefaultClaimWindow}

	assert.Equal(t, uint32(10_000_000), policy.MaxScore())
	assert.Equal(t, 7*24*time.Hour, policy.ClaimWindow())
}

func TestFixedPolicyIgnoresPool(t *testing.T) {
	policy := FixedRewardPolicy{First: 1000, Second: 500, Third: 250}

	rewards, houseCut := policy.Compute(0, 1)

	assert.Equal(t, [3]int64{1000, 500, 250}, rewards)
	assert.Equal(t, int64(0), houseCut)
	assert.Equal(t, uint32(0), policy.MaxScore())
	assert.Equal(t, time.Duration(0), policy.ClaimWindow())
}

func TestNewRewardPolicyFromEnvDefaultsToPercentage(t *testing.T) {
	t.Setenv("REWARD_MODE", "")

	policy := NewRewardPolicyFromEnv(100000)

	_, ok := policy.(PercentagePolicy)
	assert.True(t, ok)
}

func TestNewRewardPolicyFromEnvFixed(t *testing.T) {
	t.Setenv("REWARD_MODE", "fixed")
	t.Setenv("FIRST_PLACE_REWARD", "")
	t.Setenv("SECOND_PLACE_REWARD", "")
	t.Setenv("THIRD_PLACE_REWARD", "")

	policy := NewRewardPolicyFromEnv(100000)

	fixed, ok := policy.(FixedRewardPolicy)
	assert.True(t, ok)
	assert.Equal(t, int64(1000000), fixed.First)
	assert.Equal(t, int64(500000), fixed.Second)
	assert.Equal(t, int64(250000), fixed.Third)
}
