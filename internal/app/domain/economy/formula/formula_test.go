package formula

import (
	"testing"

	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	"github.com/stretchr/testify/assert"
)

func TestXPForLevelBoundaries(t *testing.T) {
	assert.Equal(t, int64(0), XPForLevel(0))
	assert.Equal(t, int64(100), XPForLevel(1))
	assert.Equal(t, int64(125), XPForLevel(2))
}

func TestLevelFromXPBoundaries(t *testing.T) {
	assert.Equal(t, 1, LevelFromXP(99))
	assert.Equal(t, 2, LevelFromXP(100))
	assert.Equal(t, MaxLevel, LevelFromXP(1<<53-1))
}

func TestTierFromLevel(t *testing.T) {
	cases := []struct {
		level int
		tier  Tier
	}{
		{1, TierRookie}, {19, TierRookie},
		{20, TierAssociate}, {39, TierAssociate},
		{40, TierSoldier}, {59, TierSoldier},
		{60, TierCaptain}, {79, TierCaptain},
		{80, TierUnderboss}, {99, TierUnderboss},
		{100, TierKingpin}, {200, TierKingpin},
	}
	for _, c := range cases {
		assert.Equal(t, c.tier, TierFromLevel(c.level), "level %d", c.level)
	}
}

func TestTierMultiplierOrder(t *testing.T) {
	assert.Equal(t, 1.0, TierMultiplier(TierRookie))
	assert.Equal(t, 1.1, TierMultiplier(TierAssociate))
	assert.Equal(t, 1.5, TierMultiplier(TierKingpin))
}

func TestRobberySuccessRateClamped(t *testing.T) {
	// Max everything: should clamp at 0.85.
	assert.Equal(t, 0.85, RobberySuccessRate(1.0, 0.0, 100))
	// Min everything: should clamp at 0.45.
	assert.Equal(t, 0.45, RobberySuccessRate(0.0, 1.0, -100))
	// Equal level, no gear.
	assert.InDelta(t, 0.60, RobberySuccessRate(0, 0, 0), 1e-9)
}

func TestRobberySuccessRateSeedScenario(t *testing.T) {
	// Attacker weapon +10%, defender armor +5%, same level.
	rate := RobberySuccessRate(0.10, 0.05, 0)
	assert.InDelta(t, 0.65, rate, 1e-9)
}

func TestBailCostFloorsAtMinimum(t *testing.T) {
	assert.Equal(t, int64(0), BailCost(50, 100)) // below minimum -> free
	assert.Equal(t, int64(100), BailCost(100, 100))
	assert.Equal(t, int64(500), BailCost(5000, 100))
}

func TestHandValueSoft17(t *testing.T) {
	total, soft := HandValue([]int{11, 6})
	assert.Equal(t, 17, total)
	assert.True(t, soft)
	assert.True(t, DealerShouldHit(total, soft))
}

func TestHandValueBustDemotesAce(t *testing.T) {
	total, soft := HandValue([]int{11, 9, 5})
	assert.Equal(t, 15, total)
	assert.False(t, soft)
}

func TestHandValueHard17Stands(t *testing.T) {
	assert.False(t, DealerShouldHit(17, false))
}

func TestLotteryPartialPayout(t *testing.T) {
	assert.Equal(t, int64(50), LotteryPartialPayout(2, 5))
	assert.Equal(t, int64(10), LotteryPartialPayout(1, 5))
	assert.Equal(t, int64(0), LotteryPartialPayout(0, 5))
}

func TestDurabilityDecayWithinRange(t *testing.T) {
	src := rng.NewSequence(0.0, 0.99, 0.5)
	for i := 0; i < 10; i++ {
		d := DurabilityDecay(2, 3, src)
		assert.GreaterOrEqual(t, d, 2)
		assert.LessOrEqual(t, d, 3)
	}
}

func TestStealAmount(t *testing.T) {
	assert.Equal(t, int64(200), StealAmount(1000, 0.20))
}

func TestSampleCrateTierDeterministic(t *testing.T) {
	weights := CrateTierWeights{"common": 0.8, "legendary": 0.2}
	low := rng.NewSequence(0.01)
	assert.Equal(t, "common", SampleCrateTier(weights, low))
	high := rng.NewSequence(0.99)
	assert.Equal(t, "legendary", SampleCrateTier(weights, high))
}

func TestSlotsPayoutJackpotTriple(t *testing.T) {
	table := []SlotSymbol{
		{Name: "cherry", Weight: 1, TripleMult: 3, PairMult: 1},
		{Name: "bar", Weight: 1, TripleMult: 5, PairMult: 2},
		{Name: "seven", Weight: 1, Jackpot: true},
	}
	reels := [3]SlotSymbol{table[2], table[2], table[2]}
	outcome, payout := SlotsPayout(reels, 100, 5000, 0, rng.NewSequence(0.99))
	assert.Equal(t, SlotsJackpot, outcome)
	assert.Equal(t, int64(5000), payout)
}

func TestSlotsPayoutPair(t *testing.T) {
	table := []SlotSymbol{
		{Name: "cherry", Weight: 1, TripleMult: 3, PairMult: 1.5},
		{Name: "bar", Weight: 1, TripleMult: 5, PairMult: 2},
	}
	reels := [3]SlotSymbol{table[0], table[0], table[1]}
	outcome, payout := SlotsPayout(reels, 100, 5000, 0, rng.NewSequence(0.99))
	assert.Equal(t, SlotsPair, outcome)
	assert.Equal(t, int64(150), payout)
}

func TestSlotsPayoutRandomJackpotOnLoss(t *testing.T) {
	table := []SlotSymbol{
		{Name: "a", Weight: 1, TripleMult: 3, PairMult: 1.5},
		{Name: "b", Weight: 1, TripleMult: 5, PairMult: 2},
		{Name: "c", Weight: 1, TripleMult: 5, PairMult: 2},
	}
	reels := [3]SlotSymbol{table[0], table[1], table[2]}
	outcome, payout := SlotsPayout(reels, 100, 9000, 1.0, rng.NewSequence(0.0))
	assert.Equal(t, SlotsJackpot, outcome)
	assert.Equal(t, int64(9000), payout)
}
