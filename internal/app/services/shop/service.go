// Package shop implements the rotating per-user offer list behind the shop
// endpoints: viewing the current rotation, paying to reroll it early, and
// purchasing an offer into inventory (§6 "GET /shop, POST /shop/reroll,
// POST /shop/purchase/{id}").
package shop

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/domain/shop"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// Rotation size, reroll cost, and rotation lifetime are not named anywhere
// in the persisted state layout or formulas the rest of the economy draws
// on, so they are fixed here rather than read from config (documented as an
// Open Question resolution).
const (
	rotationSize   = 4
	rotationTTL    = 6 * time.Hour
	rerollCostBase = 25
)

// Service implements Current/Reroll/Purchase over the shop rotation store.
type Service struct {
	store storage.Store
	clock clock.Clock
	rng   rng.Source
	inv   *inventorysvc.Service
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, src rng.Source, inv *inventorysvc.Service) *Service {
	return &Service{store: store, clock: clk, rng: src, inv: inv}
}

// Current returns the user's rotation, rolling a fresh one if none exists
// or the existing one has expired.
func (s *Service) Current(ctx context.Context, userID string) (shop.Rotation, error) {
	rot, err := s.store.GetRotation(ctx, userID)
	if err != nil {
		return shop.Rotation{}, apperrors.NewInternal("get shop rotation", err)
	}
	if !rot.IsStale(s.clock.Now()) {
		return rot, nil
	}
	return s.roll(ctx, userID)
}

// Reroll debits the reroll cost from wealth, then rolls a fresh rotation
// regardless of whether the current one has expired yet.
func (s *Service) Reroll(ctx context.Context, userID string) (shop.Rotation, error) {
	var rot shop.Rotation
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Wealth < rerollCostBase {
			return apperrors.NewInsufficient("wealth", rerollCostBase, user.Wealth)
		}
		user.Wealth -= rerollCostBase
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit reroll cost", err)
		}
		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindShop,
			WealthDelta: -rerollCostBase,
			CreatedAt:   s.clock.Now(),
			Details:     map[string]interface{}{"action": "shop_reroll"},
		}); err != nil {
			return apperrors.NewInternal("append reroll event", err)
		}
		r, err := s.rollWithStore(ctx, tx, userID)
		if err != nil {
			return err
		}
		rot = r
		return nil
	})
	if txErr != nil {
		return shop.Rotation{}, txErr
	}
	return rot, nil
}

// Purchase validates itemDefID is in the user's current rotation, debits
// its rolled price, and places the item into inventory via the inventory
// service.
func (s *Service) Purchase(ctx context.Context, userID, itemDefID string) (inventory.Item, error) {
	var item inventory.Item
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		rot, rerr := tx.GetRotation(ctx, userID)
		if rerr != nil {
			return apperrors.NewInternal("get shop rotation", rerr)
		}
		if rot.IsStale(s.clock.Now()) {
			return apperrors.NewExpired("shop rotation has expired, reroll or view it again")
		}
		offer, ok := rot.Find(itemDefID)
		if !ok {
			return apperrors.NewNotFound("shop offer", itemDefID)
		}

		def, derr := tx.GetItemDef(ctx, itemDefID)
		if derr != nil {
			return apperrors.NewNotFound("item definition", itemDefID)
		}

		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Wealth < offer.Price {
			return apperrors.NewInsufficient("wealth", offer.Price, user.Wealth)
		}

		it, _, aerr := s.inv.AddItem(ctx, tx, userID, def, inventorysvc.AddOptions{})
		if aerr != nil {
			return aerr
		}

		user.Wealth -= offer.Price
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit purchase cost", err)
		}
		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindShop,
			WealthDelta: -offer.Price,
			CreatedAt:   s.clock.Now(),
			Details:     map[string]interface{}{"action": "shop_purchase", "item_def_id": itemDefID},
		}); err != nil {
			return apperrors.NewInternal("append purchase event", err)
		}
		item = it
		return nil
	})
	if txErr != nil {
		return inventory.Item{}, txErr
	}
	return item, nil
}

func (s *Service) roll(ctx context.Context, userID string) (shop.Rotation, error) {
	var rot shop.Rotation
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		r, err := s.rollWithStore(ctx, tx, userID)
		if err != nil {
			return err
		}
		rot = r
		return nil
	})
	if txErr != nil {
		return shop.Rotation{}, txErr
	}
	return rot, nil
}

// rollWithStore samples rotationSize distinct item definitions and prices
// each offer at its catalog PurchasePrice, grounded on the lottery draw's
// unique-sampling pattern (reject already-picked indices and retry).
func (s *Service) rollWithStore(ctx context.Context, tx storage.Store, userID string) (shop.Rotation, error) {
	defs, err := tx.ListItemDefs(ctx)
	if err != nil {
		return shop.Rotation{}, apperrors.NewInternal("list item defs", err)
	}
	if len(defs) == 0 {
		return shop.Rotation{}, apperrors.NewInternal("list item defs", nil)
	}

	want := rotationSize
	if want > len(defs) {
		want = len(defs)
	}
	picked := make(map[int]struct{}, want)
	offers := make([]shop.Offer, 0, want)
	for len(offers) < want {
		idx := s.rng.IntN(len(defs))
		if _, ok := picked[idx]; ok {
			continue
		}
		picked[idx] = struct{}{}
		offers = append(offers, shop.Offer{ItemDefID: defs[idx].ID, Price: defs[idx].PurchasePrice})
	}

	now := s.clock.Now()
	rot := shop.Rotation{
		UserID:    userID,
		Offers:    offers,
		RolledAt:  now,
		ExpiresAt: now.Add(rotationTTL),
	}
	return tx.UpsertRotation(ctx, rot)
}
