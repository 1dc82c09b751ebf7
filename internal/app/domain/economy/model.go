// Package economy defines the play-event table and the pure selection
// functions behind Play's weighted per-tier sampling (§4.8 "select an event
// for the user's tier by weighted sampling; roll wealth and XP uniformly
// within the event's band").
package economy

import (
	"sort"

	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
)

// PlayEvent is one static flavor-text entry in a tier's weighted event table.
type PlayEvent struct {
	Name      string
	Tier      formula.Tier
	Weight    float64
	WealthMin int64
	WealthMax int64
	XPMin     int64
	XPMax     int64
}

// DefaultPlayEvents is the stock per-tier event table. Every tier carries at
// least one event so weighted sampling never falls through empty.
var DefaultPlayEvents = []PlayEvent{
	{Name: "Pickpocketed a tourist", Tier: formula.TierRookie, Weight: 0.5, WealthMin: 10, WealthMax: 40, XPMin: 5, XPMax: 15},
	{Name: "Ran a corner dice game", Tier: formula.TierRookie, Weight: 0.5, WealthMin: 20, WealthMax: 60, XPMin: 8, XPMax: 20},

	{Name: "Fenced some hot goods", Tier: formula.TierAssociate, Weight: 0.5, WealthMin: 40, WealthMax: 100, XPMin: 12, XPMax: 28},
	{Name: "Collected protection money", Tier: formula.TierAssociate, Weight: 0.5, WealthMin: 50, WealthMax: 120, XPMin: 15, XPMax: 32},

	{Name: "Ran a chop shop for a night", Tier: formula.TierSoldier, Weight: 0.5, WealthMin: 80, WealthMax: 200, XPMin: 20, XPMax: 45},
	{Name: "Ran numbers for the crew", Tier: formula.TierSoldier, Weight: 0.5, WealthMin: 100, WealthMax: 220, XPMin: 25, XPMax: 50},

	{Name: "Moved product across town", Tier: formula.TierCaptain, Weight: 0.5, WealthMin: 150, WealthMax: 350, XPMin: 35, XPMax: 70},
	{Name: "Shook down a rival crew", Tier: formula.TierCaptain, Weight: 0.5, WealthMin: 180, WealthMax: 400, XPMin: 40, XPMax: 80},

	{Name: "Laundered cash through a front", Tier: formula.TierUnderboss, Weight: 0.5, WealthMin: 300, WealthMax: 650, XPMin: 60, XPMax: 110},
	{Name: "Closed a territory deal", Tier: formula.TierUnderboss, Weight: 0.5, WealthMin: 350, WealthMax: 700, XPMin: 65, XPMax: 120},

	{Name: "Pulled off the big score", Tier: formula.TierKingpin, Weight: 0.5, WealthMin: 600, WealthMax: 1200, XPMin: 100, XPMax: 200},
	{Name: "Brokered a city-wide deal", Tier: formula.TierKingpin, Weight: 0.5, WealthMin: 700, WealthMax: 1400, XPMin: 110, XPMax: 220},
}

// SelectPlayEvent weighted-samples one event from the subset matching tier.
// Falls back to the full table if the tier has no events configured.
func SelectPlayEvent(events []PlayEvent, tier formula.Tier, src rng.Source) PlayEvent {
	pool := make([]PlayEvent, 0, len(events))
	for _, e := range events {
		if e.Tier == tier {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		pool = events
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Name < pool[j].Name })

	total := 0.0
	for _, e := range pool {
		total += e.Weight
	}
	if total <= 0 {
		return pool[0]
	}
	roll := src.Float64() * total
	cum := 0.0
	for _, e := range pool {
		cum += e.Weight
		if roll < cum {
			return e
		}
	}
	return pool[len(pool)-1]
}

// RollBand draws a uniform integer in [lo, hi] via src; UniformInt semantics
// (swap bounds if inverted).
func RollBand(lo, hi int64, src rng.Source) int64 {
	return int64(rng.UniformInt(src, int(lo), int(hi)))
}

// DefaultCrateTierWeights favors higher crate tiers for higher-rank players
// (§4.3 "Play crate tier").
var DefaultCrateTierWeights = map[formula.Tier]formula.CrateTierWeights{
	formula.TierRookie:    {"common": 0.85, "uncommon": 0.13, "rare": 0.02, "legendary": 0.0},
	formula.TierAssociate: {"common": 0.75, "uncommon": 0.20, "rare": 0.045, "legendary": 0.005},
	formula.TierSoldier:   {"common": 0.65, "uncommon": 0.26, "rare": 0.08, "legendary": 0.01},
	formula.TierCaptain:   {"common": 0.55, "uncommon": 0.30, "rare": 0.12, "legendary": 0.03},
	formula.TierUnderboss: {"common": 0.45, "uncommon": 0.32, "rare": 0.18, "legendary": 0.05},
	formula.TierKingpin:   {"common": 0.35, "uncommon": 0.30, "rare": 0.25, "legendary": 0.10},
}
