// Package currency defines the token and bond secondary-currency ledgers
// (§3 User token/bond fields, §4.7).
package currency

import (
	"math"
	"time"
)

// TransactionType classifies a token or bond ledger entry.
type TransactionType string

const (
	TxWealthConversion TransactionType = "wealth_conversion"
	TxChannelPoints     TransactionType = "channel_points"
	TxSpend             TransactionType = "spend"
	TxDecay             TransactionType = "decay"
	TxPurchase          TransactionType = "purchase"
)

// Transaction is an append-only ledger row for a token or bond mutation
// ("Every mutation of tokens/bonds appends a transaction row", §4.7).
type Transaction struct {
	ID          string
	UserID      string
	Amount      int64 // signed: positive credit, negative debit
	Type        TransactionType
	Description string
	CreatedAt   time.Time
}

// Limits holds the gated-conversion tunables for tokens and bonds (§4.7).
type Limits struct {
	SoftCap          int64
	HardCap          int64
	MaxConversionsPerDay int
	BaseConversionCost   int64
	ConversionScaling    float64
	ChannelPointRate     int64 // tokens = floor(cp / Rate)

	BondMinLevel      int
	BondCooldown      time.Duration
	BondConversionCost int64
	BondsPerConversion  int64

	DecayAboveSoftPct float64
	DecayAtHardPct    float64
}

// DefaultLimits mirrors the kind of tunables a production deploy would load
// from EconomyConfig; callers should treat these as fallbacks only.
var DefaultLimits = Limits{
	SoftCap:              1000,
	HardCap:               2000,
	MaxConversionsPerDay:  50,
	BaseConversionCost:    100,
	ConversionScaling:     1.05,
	ChannelPointRate:      10,
	BondMinLevel:          20,
	BondCooldown:          24 * time.Hour,
	BondConversionCost:    50000,
	BondsPerConversion:    10,
	DecayAboveSoftPct:     0.05,
	DecayAtHardPct:        0.10,
}

// DecayAmount computes the scheduled token decay for a user with the given
// token balance (§4.7 Decay): at or above hard cap decays a larger
// percentage of the whole balance; above soft cap but below hard cap decays
// a percentage of the excess above the soft cap; always at least 1, and
// only applies when tokens > SoftCap.
func DecayAmount(tokens int64, limits Limits) int64 {
	if tokens <= limits.SoftCap {
		return 0
	}
	var decay int64
	if tokens >= limits.HardCap {
		decay = int64(float64(tokens) * limits.DecayAtHardPct)
	} else {
		decay = int64(float64(tokens-limits.SoftCap) * limits.DecayAboveSoftPct)
	}
	if decay < 1 {
		decay = 1
	}
	return decay
}

// ConversionCost computes floor(BASE * SCALING^tokensEarnedToday) (§4.7).
func ConversionCost(limits Limits, tokensEarnedToday int64) int64 {
	cost := float64(limits.BaseConversionCost) * math.Pow(limits.ConversionScaling, float64(tokensEarnedToday))
	return int64(math.Floor(cost))
}
