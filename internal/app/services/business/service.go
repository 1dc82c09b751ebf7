// Package business implements the scheduled business-revenue tick for
// equipped business items (§4.10).
package business

import (
	"context"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/business"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// Service implements the business revenue tick (§4.10).
type Service struct {
	store storage.Store
	clock clock.Clock
	rng   rng.Source
	cfg   config.EconomyConfig
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, src rng.Source, cfg config.EconomyConfig) *Service {
	return &Service{store: store, clock: clk, rng: src, cfg: cfg}
}

// TickAll ticks every user with an equipped business item forward one
// revenue period (§4.10), called by the scheduler at the configured
// business-ticks-per-day cadence.
func (s *Service) TickAll(ctx context.Context, limit int) (int, error) {
	owners, err := s.store.ListBusinessOwners(ctx, limit)
	if err != nil {
		return 0, apperrors.NewInternal("list business owners", err)
	}
	ticked := 0
	for _, userID := range owners {
		if err := s.tickOne(ctx, userID); err != nil {
			continue
		}
		ticked++
	}
	return ticked, nil
}

func (s *Service) tickOne(ctx context.Context, userID string) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		item, def, ok, err := s.equippedBusiness(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		ticks := s.cfg.BusinessTicksPerDay
		if ticks <= 0 {
			ticks = 1
		}
		base := def.BusinessDailyRevenue / int64(ticks)
		variance := int64(0)
		if base > 0 {
			v := int64(float64(base) * s.cfg.BusinessVariancePct)
			if v > 0 {
				variance = int64(rng.UniformInt(s.rng, -int(v), int(v)))
			}
		}
		gross := base + variance
		operatingCost := def.BusinessOperatingCost / int64(ticks)
		net := business.NetRevenue(gross, operatingCost)

		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewInternal("lock user", uerr)
		}
		user.Wealth += net
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("credit business revenue", err)
		}

		if _, err := tx.AppendRevenueEntry(ctx, business.RevenueEntry{
			UserID:        userID,
			ItemID:        item.ID,
			GrossRevenue:  gross,
			OperatingCost: operatingCost,
			NetRevenue:    net,
			TickedAt:      s.clock.Now(),
		}); err != nil {
			return apperrors.NewInternal("append revenue entry", err)
		}
		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindBusiness,
			WealthDelta: net,
			CreatedAt:   s.clock.Now(),
			Details:     map[string]interface{}{"gross": gross, "operating_cost": operatingCost},
		}); err != nil {
			return apperrors.NewInternal("append business event", err)
		}
		return nil
	})
}

func (s *Service) equippedBusiness(ctx context.Context, tx storage.Store, userID string) (inventory.Item, inventory.ItemDef, bool, error) {
	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return inventory.Item{}, inventory.ItemDef{}, false, apperrors.NewInternal("list items", err)
	}
	for _, it := range rows {
		if !it.IsEquipped || it.Slot != inventory.Slot(inventory.ItemBusiness) {
			continue
		}
		def, derr := tx.GetItemDef(ctx, it.ItemDefID)
		if derr != nil {
			continue
		}
		if def.Type != inventory.ItemBusiness {
			continue
		}
		return it, def, true, nil
	}
	return inventory.Item{}, inventory.ItemDef{}, false, nil
}

// History returns recent revenue history for a user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]business.RevenueEntry, error) {
	rows, err := s.store.ListRevenueHistory(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewInternal("list revenue history", err)
	}
	return rows, nil
}
