// Package currency implements the token and bond secondary-currency
// ledgers: gated wealth conversion, channel-point grants, spends, and
// scheduled decay (§4.7).
package currency

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/currency"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// Service implements the token/bond operations of §4.7.
type Service struct {
	store storage.Store
	clock clock.Clock
	cfg   config.EconomyConfig
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, cfg config.EconomyConfig) *Service {
	return &Service{store: store, clock: clk, cfg: cfg}
}

func (s *Service) limits() currency.Limits {
	return currency.Limits{
		SoftCap:              s.cfg.TokenSoftCap,
		HardCap:              s.cfg.TokenHardCap,
		MaxConversionsPerDay: s.cfg.TokenMaxPerDay,
		BaseConversionCost:   s.cfg.TokenBaseCost,
		ConversionScaling:    s.cfg.TokenCostScaling,
		ChannelPointRate:     s.cfg.ChannelPointsRate,
		BondMinLevel:         s.cfg.BondMinLevel,
		BondCooldown:         time.Duration(s.cfg.BondCooldownDays) * 24 * time.Hour,
		BondConversionCost:   s.cfg.BondConversionCost,
		BondsPerConversion:   s.cfg.BondsReceivedPerConversion,
		DecayAboveSoftPct:    s.cfg.TokenDecayAboveSoftPct,
		DecayAtHardPct:       s.cfg.TokenDecayAtHardPct,
	}
}

func clampInt64(v, max int64) int64 {
	if v > max {
		return max
	}
	return v
}

func (s *Service) appendTx(ctx context.Context, tx storage.Store, userID string, amount int64, typ currency.TransactionType, desc string) error {
	_, err := tx.AppendTransaction(ctx, currency.Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: desc,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return apperrors.NewInternal("append currency transaction", err)
	}
	return nil
}

// ConvertWealthToToken debits the scaling conversion cost from wealth and
// credits one token, clamped at the hard cap (§4.7).
func (s *Service) ConvertWealthToToken(ctx context.Context, userID string) (cost int64, newTokens int64, err error) {
	lim := s.limits()
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if !user.LastTokenReset.IsZero() && isSameUTCDay(user.LastTokenReset, s.clock.Now()) && user.TokensEarnedToday >= int64(lim.MaxConversionsPerDay) {
			return apperrors.NewPolicy("daily token conversion limit reached")
		}
		if user.Tokens >= lim.HardCap {
			return apperrors.NewPolicy("tokens are already at the hard cap")
		}
		cost = currency.ConversionCost(lim, user.TokensEarnedToday)
		if user.Wealth < cost {
			return apperrors.NewInsufficient("wealth", cost, user.Wealth)
		}
		user.Wealth -= cost
		user.Tokens = clampInt64(user.Tokens+1, lim.HardCap)
		user.TokensEarnedToday++
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if err := s.appendTx(ctx, tx, userID, 1, currency.TxWealthConversion, "wealth to token"); err != nil {
			return err
		}
		newTokens = user.Tokens
		return nil
	})
	if txErr != nil {
		return 0, 0, txErr
	}
	return cost, newTokens, nil
}

// ConvertChannelPoints grants floor(cp / rate) tokens, clamped at the hard
// cap (§4.7).
func (s *Service) ConvertChannelPoints(ctx context.Context, userID string, cp int64) (granted int64, newTokens int64, err error) {
	lim := s.limits()
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if lim.ChannelPointRate <= 0 {
			return apperrors.NewInternal("channel point rate misconfigured", nil)
		}
		granted = cp / lim.ChannelPointRate
		if granted <= 0 {
			return nil
		}
		user.Tokens = clampInt64(user.Tokens+granted, lim.HardCap)
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if err := s.appendTx(ctx, tx, userID, granted, currency.TxChannelPoints, "channel point conversion"); err != nil {
			return err
		}
		newTokens = user.Tokens
		return nil
	})
	if txErr != nil {
		return 0, 0, txErr
	}
	return granted, newTokens, nil
}

// SpendTokens atomically decrements n tokens, requiring tokens >= n (§4.7).
// Purpose-specific multipliers are the caller's concern; this only moves
// the ledger.
func (s *Service) SpendTokens(ctx context.Context, userID string, n int64, purpose string) (newTokens int64, err error) {
	if n <= 0 {
		return 0, apperrors.NewValidation("amount", "must be positive")
	}
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Tokens < n {
			return apperrors.NewInsufficient("tokens", n, user.Tokens)
		}
		user.Tokens -= n
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if err := s.appendTx(ctx, tx, userID, -n, currency.TxSpend, purpose); err != nil {
			return err
		}
		newTokens = user.Tokens
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return newTokens, nil
}

// ConvertWealthToBonds requires a minimum level and a per-user cooldown
// since the last conversion, then debits wealth for a fixed bond grant
// (§4.7).
func (s *Service) ConvertWealthToBonds(ctx context.Context, userID string) (newBonds int64, newWealth int64, err error) {
	lim := s.limits()
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Level < lim.BondMinLevel {
			return apperrors.NewPolicy("level too low to convert bonds")
		}
		now := s.clock.Now()
		if !user.LastBondConversion.IsZero() && now.Sub(user.LastBondConversion) < lim.BondCooldown {
			remaining := lim.BondCooldown - now.Sub(user.LastBondConversion)
			return apperrors.NewCooldown("bond_conversion", int64(remaining.Seconds()))
		}
		if user.Wealth < lim.BondConversionCost {
			return apperrors.NewInsufficient("wealth", lim.BondConversionCost, user.Wealth)
		}
		user.Wealth -= lim.BondConversionCost
		user.Bonds += lim.BondsPerConversion
		user.LastBondConversion = now
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if err := s.appendTx(ctx, tx, userID, lim.BondsPerConversion, currency.TxWealthConversion, "wealth to bonds"); err != nil {
			return err
		}
		newBonds = user.Bonds
		newWealth = user.Wealth
		return nil
	})
	if txErr != nil {
		return 0, 0, txErr
	}
	return newBonds, newWealth, nil
}

// SpendBonds atomically decrements amount bonds (§4.7).
func (s *Service) SpendBonds(ctx context.Context, userID string, amount int64, purpose string) (newBonds int64, err error) {
	if amount <= 0 {
		return 0, apperrors.NewValidation("amount", "must be positive")
	}
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Bonds < amount {
			return apperrors.NewInsufficient("bonds", amount, user.Bonds)
		}
		user.Bonds -= amount
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if err := s.appendTx(ctx, tx, userID, -amount, currency.TxSpend, purpose); err != nil {
			return err
		}
		newBonds = user.Bonds
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return newBonds, nil
}

// GrantPurchase records an externally-paid token/bond grant as a PURCHASE
// transaction (§4.7 "Purchases from external payment are treated as
// grants").
func (s *Service) GrantPurchase(ctx context.Context, userID string, tokens, bonds int64, description string) error {
	lim := s.limits()
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		user.Tokens = clampInt64(user.Tokens+tokens, lim.HardCap)
		user.Bonds += bonds
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if tokens != 0 {
			if err := s.appendTx(ctx, tx, userID, tokens, currency.TxPurchase, description); err != nil {
				return err
			}
		}
		if bonds != 0 {
			if err := s.appendTx(ctx, tx, userID, bonds, currency.TxPurchase, description); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetDailyTokenCounters zeroes tokens_earned_today for every user due for
// the UTC-midnight daily reset (§4.7, scheduler-driven).
func (s *Service) ResetDailyTokenCounters(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.ListUsersForDailyReset(ctx, limit)
	if err != nil {
		return 0, apperrors.NewInternal("list users for daily reset", err)
	}
	reset := 0
	for _, id := range ids {
		if err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			user, uerr := tx.LockUser(ctx, id)
			if uerr != nil {
				return uerr
			}
			user.TokensEarnedToday = 0
			user.LastTokenReset = s.clock.Now()
			_, err := tx.UpdateUser(ctx, user)
			return err
		}); err != nil {
			continue
		}
		reset++
	}
	return reset, nil
}

// ApplyDecay runs the scheduled token decay over every user above the soft
// cap (§4.7 Decay).
func (s *Service) ApplyDecay(ctx context.Context, limit int) (int, error) {
	lim := s.limits()
	ids, err := s.store.ListUsersForDecay(ctx, lim.SoftCap, limit)
	if err != nil {
		return 0, apperrors.NewInternal("list users for decay", err)
	}
	decayed := 0
	for _, id := range ids {
		if err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			user, uerr := tx.LockUser(ctx, id)
			if uerr != nil {
				return uerr
			}
			amount := currency.DecayAmount(user.Tokens, lim)
			if amount <= 0 {
				return nil
			}
			user.Tokens -= amount
			if user.Tokens < 0 {
				user.Tokens = 0
			}
			if _, err := tx.UpdateUser(ctx, user); err != nil {
				return err
			}
			return s.appendTx(ctx, tx, id, -amount, currency.TxDecay, "scheduled token decay")
		}); err != nil {
			continue
		}
		decayed++
	}
	return decayed, nil
}

func isSameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
