// Package formula holds the pure, deterministic functions that back the
// economy core's commands (§4.3). Every function here is total: same inputs
// (including an explicit randomness argument where applicable) always
// produce the same output. No function in this package touches a Store or
// a clock.
package formula

import (
	"math"
	"sort"

	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
)

// Tier is the ordered player rank derived from level.
type Tier string

const (
	TierRookie    Tier = "Rookie"
	TierAssociate Tier = "Associate"
	TierSoldier   Tier = "Soldier"
	TierCaptain   Tier = "Captain"
	TierUnderboss Tier = "Underboss"
	TierKingpin   Tier = "Kingpin"
)

var tierThresholds = []struct {
	level int
	tier  Tier
	mult  float64
}{
	{1, TierRookie, 1.0},
	{20, TierAssociate, 1.1},
	{40, TierSoldier, 1.2},
	{60, TierCaptain, 1.3},
	{80, TierUnderboss, 1.4},
	{100, TierKingpin, 1.5},
}

// MaxLevel is the highest attainable player level.
const MaxLevel = 200

// XPForLevel returns floor(100 * 1.25^(N-1)) for N >= 1, else 0.
func XPForLevel(level int) int64 {
	if level < 1 {
		return 0
	}
	return int64(math.Floor(100 * math.Pow(1.25, float64(level-1))))
}

// LevelFromXP returns the smallest L in [1,200] such that the cumulative XP
// required through level L exceeds totalXP, clamped to MaxLevel.
func LevelFromXP(totalXP int64) int {
	var cumulative int64
	for level := 1; level <= MaxLevel; level++ {
		cumulative += XPForLevel(level)
		if cumulative > totalXP {
			return level
		}
	}
	return MaxLevel
}

// TierFromLevel derives the player tier from level using the piecewise
// thresholds at 1, 20, 40, 60, 80, 100.
func TierFromLevel(level int) Tier {
	tier := tierThresholds[0].tier
	for _, t := range tierThresholds {
		if level >= t.level {
			tier = t.tier
		}
	}
	return tier
}

// TierMultiplier returns the reward multiplier for a tier.
func TierMultiplier(tier Tier) float64 {
	for _, t := range tierThresholds {
		if t.tier == tier {
			return t.mult
		}
	}
	return 1.0
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RobberySuccessRate computes the §4.3 robbery success formula:
// start at 0.60, add min(weaponBonus,0.15), subtract min(armorReduction,0.15),
// add clamp(levelDiff*0.01, -0.10, +0.10), clamp result to [0.45, 0.85].
func RobberySuccessRate(weaponBonus, armorReduction float64, levelDiff int) float64 {
	rate := 0.60
	rate += math.Min(weaponBonus, 0.15)
	rate -= math.Min(armorReduction, 0.15)
	rate += clampFloat(float64(levelDiff)*0.01, -0.10, 0.10)
	return clampFloat(rate, 0.45, 0.85)
}

// BailCost computes the §4.4 bail formula: max(minBail, floor(0.10*wealth)),
// but is free (0) when wealth is below minBail — jail is still cleared by the
// caller in that case.
func BailCost(wealth, minBail int64) int64 {
	if wealth < minBail {
		return 0
	}
	cost := int64(math.Floor(0.10 * float64(wealth)))
	if cost < minBail {
		cost = minBail
	}
	return cost
}

// SlotSymbol describes one weighted reel symbol.
type SlotSymbol struct {
	Name       string
	Weight     float64
	Jackpot    bool
	TripleMult float64 // three-of-a-kind payout multiplier (ignored if Jackpot)
	PairMult   float64 // two-of-a-kind payout multiplier
}

// SlotsOutcome is the outcome classification of a single spin.
type SlotsOutcome string

const (
	SlotsJackpot SlotsOutcome = "jackpot"
	SlotsTriple  SlotsOutcome = "triple"
	SlotsPair    SlotsOutcome = "pair"
	SlotsLoss    SlotsOutcome = "loss"
)

// SpinSlots draws three symbols from the weighted table using src.
func SpinSlots(table []SlotSymbol, src rng.Source) [3]SlotSymbol {
	var reels [3]SlotSymbol
	total := 0.0
	for _, s := range table {
		total += s.Weight
	}
	for i := range reels {
		roll := src.Float64() * total
		cum := 0.0
		chosen := table[len(table)-1]
		for _, s := range table {
			cum += s.Weight
			if roll < cum {
				chosen = s
				break
			}
		}
		reels[i] = chosen
	}
	return reels
}

// SlotsPayout classifies a spin and computes the integer payout. jackpotPool
// is paid out in full when the jackpot symbol lands three-of-a-kind, or when
// the tier-dependent random-jackpot side-roll hits on an otherwise-zero spin.
func SlotsPayout(reels [3]SlotSymbol, wager, jackpotPool int64, randomJackpotChance float64, src rng.Source) (SlotsOutcome, int64) {
	if reels[0].Name == reels[1].Name && reels[1].Name == reels[2].Name {
		if reels[0].Jackpot {
			return SlotsJackpot, jackpotPool
		}
		return SlotsTriple, int64(math.Floor(float64(wager) * reels[0].TripleMult))
	}
	if reels[0].Name == reels[1].Name || reels[1].Name == reels[2].Name || reels[0].Name == reels[2].Name {
		pairSymbol := reels[1]
		switch {
		case reels[0].Name == reels[1].Name:
			pairSymbol = reels[0]
		case reels[1].Name == reels[2].Name:
			pairSymbol = reels[1]
		case reels[0].Name == reels[2].Name:
			pairSymbol = reels[0]
		}
		return SlotsPair, int64(math.Floor(float64(wager) * pairSymbol.PairMult))
	}
	if randomJackpotChance > 0 && src.Float64() < randomJackpotChance {
		return SlotsJackpot, jackpotPool
	}
	return SlotsLoss, 0
}

// CardRank is a simplified blackjack card rank; value ignores suit.
type CardRank int

// HandValue computes the best blackjack total for the given card values
// (2-10, 11 for ace), demoting aces from 11 to 1 on bust, and reports
// whether the hand is "soft" (an ace still counts as 11, and total <= 21).
func HandValue(cards []int) (total int, isSoft bool) {
	sum := 0
	aces := 0
	for _, c := range cards {
		sum += c
		if c == 11 {
			aces++
		}
	}
	for sum > 21 && aces > 0 {
		sum -= 10
		aces--
	}
	return sum, aces > 0 && sum <= 21
}

// DealerShouldHit implements "hit on soft 17, stand on hard 17": the dealer
// draws while value < 17, or value == 17 and the hand is soft.
func DealerShouldHit(value int, isSoft bool) bool {
	return value < 17 || (value == 17 && isSoft)
}

// LotteryPartialPayout returns the payout amount for a partial match count:
// 2 -> 10x ticketCost, 1 -> 2x ticketCost, anything else -> 0. The 3-match
// case is handled by the caller since it pays the whole pool, not a
// multiple of ticket cost.
func LotteryPartialPayout(matches int, ticketCost int64) int64 {
	switch matches {
	case 2:
		return 10 * ticketCost
	case 1:
		return 2 * ticketCost
	default:
		return 0
	}
}

// DurabilityDecay draws a uniform integer decay amount in [min,max] using src.
func DurabilityDecay(min, max int, src rng.Source) int {
	return rng.UniformInt(src, min, max)
}

// StealAmount computes floor(targetWealth * uniform(min,max)) for a
// successful rob, given a pre-drawn uniform fraction in [min,max).
func StealAmount(targetWealth int64, pct float64) int64 {
	return int64(math.Floor(float64(targetWealth) * pct))
}

// CrateTierWeights maps a tier to a weighted distribution over crate tiers
// (by name), favoring higher tiers for higher-rank players.
type CrateTierWeights map[string]float64

// SampleCrateTier draws a crate tier name from the weighted distribution.
func SampleCrateTier(weights CrateTierWeights, src rng.Source) string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0.0
	for _, n := range names {
		total += weights[n]
	}
	if total <= 0 || len(names) == 0 {
		return ""
	}
	roll := src.Float64() * total
	cum := 0.0
	for _, n := range names {
		cum += weights[n]
		if roll < cum {
			return n
		}
	}
	return names[len(names)-1]
}
