// Package consumable implements the catalog purchase and usage flow:
// purchase either applies a duration buff immediately or increments
// single-use stock; usage consumes one unit of single-use stock and applies
// its buff (§4.6 Consumables row, L7).
package consumable

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/buff"
	"github.com/kingpin-stream/economy-core/internal/app/domain/consumable"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	buffsvc "github.com/kingpin-stream/economy-core/internal/app/services/buff"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

func durationFromHours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// Service implements the purchase/use flow over the consumable catalog.
type Service struct {
	store storage.Store
	clock clock.Clock
	buffs *buffsvc.Service
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, buffs *buffsvc.Service) *Service {
	return &Service{store: store, clock: clk, buffs: buffs}
}

// Catalog lists every consumable definition.
func (s *Service) Catalog(ctx context.Context) ([]consumable.Catalog, error) {
	rows, err := s.store.ListCatalog(ctx)
	if err != nil {
		return nil, apperrors.NewInternal("list consumable catalog", err)
	}
	return rows, nil
}

// Purchase debits cost from wealth, then either applies the duration buff
// immediately (duration-buff consumables) or increments owned quantity,
// clamped at MaxOwned (single-use consumables).
func (s *Service) Purchase(ctx context.Context, userID, consumableID string) (outcome buff.ApplyOutcome, newQuantity int, err error) {
	cat, err := s.store.GetCatalogEntry(ctx, consumableID)
	if err != nil {
		return "", 0, apperrors.NewNotFound("consumable", consumableID)
	}
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Wealth < cat.Cost {
			return apperrors.NewInsufficient("wealth", cat.Cost, user.Wealth)
		}

		stock, serr := tx.GetUserStock(ctx, userID, consumableID)
		if serr != nil {
			return apperrors.NewInternal("load user stock", serr)
		}
		if cat.IsSingleUse {
			candidate := cat.ClampToMax(stock.Quantity + 1)
			if candidate == stock.Quantity {
				return apperrors.NewPolicy("already own the maximum of this consumable")
			}
			stock.UserID, stock.ConsumableID = userID, consumableID
			stock.Quantity = candidate
			updated, uerr := tx.UpsertUserStock(ctx, stock)
			if uerr != nil {
				return apperrors.NewInternal("upsert user stock", uerr)
			}
			newQuantity = updated.Quantity
		}

		user.Wealth -= cat.Cost
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit purchase cost", err)
		}

		if cat.IsDurationBuff {
			o, berr := s.buffs.Apply(ctx, tx, userID, cat.BuffKey, cat.Category, cat.BuffValue, durationFromHours(cat.DurationHours), buff.SourceConsumable)
			if berr != nil {
				return berr
			}
			outcome = o
		}

		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindConsumable,
			WealthDelta: -cat.Cost,
			CreatedAt:   s.clock.Now(),
			Details:     map[string]interface{}{"action": "consumable_purchase", "consumable_id": consumableID},
		}); err != nil {
			return apperrors.NewInternal("append purchase event", err)
		}
		return nil
	})
	if txErr != nil {
		return "", 0, txErr
	}
	return outcome, newQuantity, nil
}

// Use consumes one unit of a single-use consumable's stock and applies its
// buff.
func (s *Service) Use(ctx context.Context, userID, consumableID string) (outcome buff.ApplyOutcome, remaining int, err error) {
	cat, err := s.store.GetCatalogEntry(ctx, consumableID)
	if err != nil {
		return "", 0, apperrors.NewNotFound("consumable", consumableID)
	}
	if !cat.IsSingleUse {
		return "", 0, apperrors.NewPolicy("this consumable is not usable; it applies on purchase")
	}
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		stock, serr := tx.GetUserStock(ctx, userID, consumableID)
		if serr != nil {
			return apperrors.NewInternal("load user stock", serr)
		}
		if stock.Quantity <= 0 {
			return apperrors.NewInsufficient("consumable", 1, 0)
		}
		stock.Quantity--
		updated, uerr := tx.UpsertUserStock(ctx, stock)
		if uerr != nil {
			return apperrors.NewInternal("decrement user stock", uerr)
		}
		remaining = updated.Quantity

		o, berr := s.buffs.Apply(ctx, tx, userID, cat.BuffKey, cat.Category, cat.BuffValue, durationFromHours(cat.DurationHours), buff.SourceConsumable)
		if berr != nil {
			return berr
		}
		outcome = o
		return nil
	})
	if txErr != nil {
		return "", 0, txErr
	}
	return outcome, remaining, nil
}
