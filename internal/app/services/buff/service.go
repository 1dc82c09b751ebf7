// Package buff implements the active-buff stacking algebra and expiry sweep
// (§4.6).
package buff

import (
	"context"
	"strings"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/buff"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// JuicernautBuffPrefix identifies the distinguished exclusive buff bundle
// (§4.8 "Compute Juicernaut flag by HasBuff(user, 'juicernaut_*')").
const JuicernautBuffPrefix = "juicernaut_"

// Service implements ApplyBuff/GetMultiplier/SweepExpiredBuffs (§4.6).
type Service struct {
	store storage.Store
	clock clock.Clock
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock) *Service {
	return &Service{store: store, clock: clk}
}

// Apply runs the upgrade/extend/no-op algebra for (user, buffType) inside
// the caller's transaction.
func (s *Service) Apply(ctx context.Context, tx storage.Store, userID, buffType, category string, multiplier float64, duration time.Duration, source buff.Source) (buff.ApplyOutcome, error) {
	existing, err := tx.GetActiveBuff(ctx, userID, buffType)
	if err != nil {
		return "", apperrors.NewInternal("load active buff", err)
	}
	outcome, next := buff.Resolve(existing, multiplier, duration, source, s.clock.Now())
	if outcome == buff.OutcomeNoOp {
		return outcome, nil
	}
	if next.UserID == "" {
		next.UserID = userID
	}
	next.BuffType = buffType
	if next.Category == "" {
		next.Category = category
	}
	if _, err := tx.UpsertBuff(ctx, *next); err != nil {
		return "", apperrors.NewInternal("upsert buff", err)
	}
	return outcome, nil
}

// GetMultiplier aggregates every active row for (user, buffType) (§4.6).
func (s *Service) GetMultiplier(ctx context.Context, tx storage.Store, userID, buffType string) (float64, error) {
	if tx == nil {
		tx = s.store
	}
	rows, err := tx.ListActiveBuffs(ctx, userID)
	if err != nil {
		return 1.0, apperrors.NewInternal("list active buffs", err)
	}
	matching := make([]buff.Buff, 0, len(rows))
	for _, r := range rows {
		if r.BuffType == buffType {
			matching = append(matching, r)
		}
	}
	return buff.AggregateMultiplier(matching, s.clock.Now()), nil
}

// HasJuicernaut reports whether the user holds any live juicernaut_* buff
// (§4.8).
func (s *Service) HasJuicernaut(ctx context.Context, tx storage.Store, userID string) (bool, error) {
	if tx == nil {
		tx = s.store
	}
	rows, err := tx.ListActiveBuffs(ctx, userID)
	if err != nil {
		return false, apperrors.NewInternal("list active buffs", err)
	}
	now := s.clock.Now()
	for _, r := range rows {
		if strings.HasPrefix(r.BuffType, JuicernautBuffPrefix) && r.IsLive(now) {
			return true, nil
		}
	}
	return false, nil
}

// SweepExpiredBuffs deactivates rows whose expiry has passed.
func (s *Service) SweepExpiredBuffs(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ListExpiredBuffs(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperrors.NewInternal("list expired buffs", err)
	}
	swept := 0
	for _, b := range expired {
		if err := s.store.DeactivateBuff(ctx, b.ID); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}
