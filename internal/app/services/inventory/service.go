// Package inventory implements item acquisition, equip/unequip, durability
// degradation, escrow, and sale (§4.5).
package inventory

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// Service implements AddItem/EquipItem/DegradeItem/ClaimFromEscrow/SellItem
// and their expiry sweep (§4.5).
type Service struct {
	store storage.Store
	clock clock.Clock
	cfg   config.EconomyConfig
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, cfg config.EconomyConfig) *Service {
	return &Service{store: store, clock: clk, cfg: cfg}
}

// AddOptions configures AddItem's placement policy (§4.5).
type AddOptions struct {
	Durability  int
	ForceEscrow bool
}

// AddItem places a new owned item into inventory or escrow, enforcing the
// capacity and business-ownership limits. Must run inside the caller's
// transaction so the capacity check and the insert are atomic (§5).
func (s *Service) AddItem(ctx context.Context, tx storage.Store, userID string, def inventory.ItemDef, opts AddOptions) (inventory.Item, inventory.StoredIn, error) {
	if def.Type == inventory.ItemBusiness {
		nonEscrow, err := tx.ListUserItems(ctx, userID)
		if err != nil {
			return inventory.Item{}, "", apperrors.NewInternal("list user items", err)
		}
		businessCount := 0
		for _, it := range nonEscrow {
			if it.ItemDefID == def.ID || businessItemType(tx, ctx, it) == inventory.ItemBusiness {
				businessCount++
			}
		}
		if businessCount >= s.cfg.MaxBusinesses {
			return inventory.Item{}, "", apperrors.NewPolicy("business ownership limit reached").WithDetails("max", s.cfg.MaxBusinesses)
		}
	}

	durability := opts.Durability
	if durability <= 0 {
		durability = def.BaseDurability
	}

	nonEscrowCount, err := tx.CountUserItems(ctx, userID, false)
	if err != nil {
		return inventory.Item{}, "", apperrors.NewInternal("count inventory", err)
	}
	escrowCount, err := tx.CountUserItems(ctx, userID, true)
	if err != nil {
		return inventory.Item{}, "", apperrors.NewInternal("count escrow", err)
	}

	wantEscrow := opts.ForceEscrow || nonEscrowCount >= s.cfg.MaxInventorySlots
	if wantEscrow {
		if escrowCount >= s.cfg.MaxEscrowSlots {
			if nonEscrowCount < s.cfg.MaxInventorySlots {
				wantEscrow = false
			} else {
				return inventory.Item{}, "", apperrors.NewConflict("inventory and escrow are both full")
			}
		}
	}

	item := inventory.Item{
		UserID:     userID,
		ItemDefID:  def.ID,
		Durability: durability,
		IsEscrowed: wantEscrow,
		CreatedAt:  s.clock.Now(),
	}
	if wantEscrow {
		item.EscrowExpiresAt = s.clock.Now().Add(time.Duration(s.cfg.ItemEscrowHours) * time.Hour)
	}
	created, err := tx.CreateItem(ctx, item)
	if err != nil {
		return inventory.Item{}, "", apperrors.NewInternal("create item", err)
	}
	storedIn := inventory.StoredInInventory
	if wantEscrow {
		storedIn = inventory.StoredInEscrow
	}
	return created, storedIn, nil
}

func businessItemType(tx storage.Store, ctx context.Context, it inventory.Item) inventory.ItemType {
	def, err := tx.GetItemDef(ctx, it.ItemDefID)
	if err != nil {
		return ""
	}
	return def.Type
}

// EquipItem unequips any row already equipped in the item's slot, then
// equips invId (§4.5).
func (s *Service) EquipItem(ctx context.Context, tx storage.Store, userID, invID string) (inventory.Item, error) {
	item, err := tx.GetItem(ctx, invID)
	if err != nil || item.UserID != userID {
		return inventory.Item{}, apperrors.NewNotFound("item", invID)
	}
	if item.IsEscrowed {
		return inventory.Item{}, apperrors.NewPolicy("cannot equip an escrowed item")
	}
	def, err := tx.GetItemDef(ctx, item.ItemDefID)
	if err != nil {
		return inventory.Item{}, apperrors.NewInternal("load item def", err)
	}
	slot := inventory.Slot(def.Type)

	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return inventory.Item{}, apperrors.NewInternal("list items", err)
	}
	for _, r := range rows {
		if r.IsEquipped && r.Slot == slot && r.ID != item.ID {
			r.IsEquipped = false
			r.Slot = ""
			if _, err := tx.UpdateItem(ctx, r); err != nil {
				return inventory.Item{}, apperrors.NewInternal("unequip previous item", err)
			}
		}
	}
	item.IsEquipped = true
	item.Slot = slot
	updated, err := tx.UpdateItem(ctx, item)
	if err != nil {
		return inventory.Item{}, apperrors.NewInternal("equip item", err)
	}
	return updated, nil
}

// UnequipSlot clears the equipped row in the given slot, if any.
func (s *Service) UnequipSlot(ctx context.Context, tx storage.Store, userID string, slot inventory.Slot) error {
	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return apperrors.NewInternal("list items", err)
	}
	for _, r := range rows {
		if r.IsEquipped && r.Slot == slot {
			r.IsEquipped = false
			r.Slot = ""
			if _, err := tx.UpdateItem(ctx, r); err != nil {
				return apperrors.NewInternal("unequip item", err)
			}
		}
	}
	return nil
}

// DegradeItem clamps durability by amount and destroys the row at the break
// threshold (§4.5).
func (s *Service) DegradeItem(ctx context.Context, tx storage.Store, invID string, amount int) (destroyed bool, err error) {
	item, err := tx.GetItem(ctx, invID)
	if err != nil {
		return false, apperrors.NewNotFound("item", invID)
	}
	item.Durability -= amount
	if item.Durability < 0 {
		item.Durability = 0
	}
	if item.Destroyed() {
		if err := tx.DeleteItem(ctx, invID); err != nil {
			return false, apperrors.NewInternal("delete destroyed item", err)
		}
		return true, nil
	}
	if _, err := tx.UpdateItem(ctx, item); err != nil {
		return false, apperrors.NewInternal("degrade item", err)
	}
	return false, nil
}

func (s *Service) equippedItemInSlot(ctx context.Context, tx storage.Store, userID string, itemType inventory.ItemType) (inventory.Item, bool, error) {
	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return inventory.Item{}, false, apperrors.NewInternal("list items", err)
	}
	for _, r := range rows {
		if r.IsEquipped && r.Slot == inventory.Slot(itemType) {
			return r, true, nil
		}
	}
	return inventory.Item{}, false, nil
}

// DegradeAttackerWeapon samples a uniform decay from the configured range
// and degrades the attacker's equipped weapon, if any (§4.5).
func (s *Service) DegradeAttackerWeapon(ctx context.Context, tx storage.Store, userID string, src rng.Source) (destroyed bool, err error) {
	item, ok, err := s.equippedItemInSlot(ctx, tx, userID, inventory.ItemWeapon)
	if err != nil || !ok {
		return false, err
	}
	amount := rng.UniformInt(src, s.cfg.WeaponDecayMin, s.cfg.WeaponDecayMax)
	return s.DegradeItem(ctx, tx, item.ID, amount)
}

// DegradeDefenderArmor samples a uniform decay and degrades the defender's
// equipped armor, if any (§4.5).
func (s *Service) DegradeDefenderArmor(ctx context.Context, tx storage.Store, userID string, src rng.Source) (destroyed bool, err error) {
	item, ok, err := s.equippedItemInSlot(ctx, tx, userID, inventory.ItemArmor)
	if err != nil || !ok {
		return false, err
	}
	amount := rng.UniformInt(src, s.cfg.ArmorDecayMin, s.cfg.ArmorDecayMax)
	return s.DegradeItem(ctx, tx, item.ID, amount)
}

// ClaimFromEscrow moves an escrowed row back into inventory, if space and
// TTL allow (§4.5).
func (s *Service) ClaimFromEscrow(ctx context.Context, tx storage.Store, userID, invID string) (inventory.Item, error) {
	item, err := tx.GetItem(ctx, invID)
	if err != nil || item.UserID != userID || !item.IsEscrowed {
		return inventory.Item{}, apperrors.NewNotFound("escrow item", invID)
	}
	now := s.clock.Now()
	if item.IsExpired(now) {
		_ = tx.DeleteItem(ctx, invID)
		return inventory.Item{}, apperrors.NewExpired("escrow window has closed")
	}
	count, err := tx.CountUserItems(ctx, userID, false)
	if err != nil {
		return inventory.Item{}, apperrors.NewInternal("count inventory", err)
	}
	if count >= s.cfg.MaxInventorySlots {
		return inventory.Item{}, apperrors.NewConflict("inventory is full")
	}
	item.IsEscrowed = false
	item.EscrowExpiresAt = time.Time{}
	updated, err := tx.UpdateItem(ctx, item)
	if err != nil {
		return inventory.Item{}, apperrors.NewInternal("claim from escrow", err)
	}
	return updated, nil
}

// SellItem credits the item's sell price and deletes the row (§4.5).
func (s *Service) SellItem(ctx context.Context, tx storage.Store, userID, invID string) (sellPrice int64, err error) {
	item, err := tx.GetItem(ctx, invID)
	if err != nil || item.UserID != userID {
		return 0, apperrors.NewNotFound("item", invID)
	}
	if item.IsEquipped {
		return 0, apperrors.NewPolicy("cannot sell an equipped item")
	}
	def, err := tx.GetItemDef(ctx, item.ItemDefID)
	if err != nil {
		return 0, apperrors.NewInternal("load item def", err)
	}
	user, err := tx.LockUser(ctx, userID)
	if err != nil {
		return 0, apperrors.NewNotFound("user", userID)
	}
	user.Wealth += def.SellPrice
	if _, err := tx.UpdateUser(ctx, user); err != nil {
		return 0, apperrors.NewInternal("credit sell price", err)
	}
	if err := tx.DeleteItem(ctx, invID); err != nil {
		return 0, apperrors.NewInternal("delete sold item", err)
	}
	if _, err := tx.AppendEvent(ctx, gameevent.Event{
		UserID:      userID,
		Kind:        gameevent.KindBusiness,
		WealthDelta: def.SellPrice,
		CreatedAt:   s.clock.Now(),
		Details:     map[string]interface{}{"action": "item_sell", "item_def_id": def.ID},
	}); err != nil {
		return 0, apperrors.NewInternal("append sell event", err)
	}
	return def.SellPrice, nil
}

// SweepExpiredEscrow deletes escrow rows past their TTL (§4.5).
func (s *Service) SweepExpiredEscrow(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ListExpiredEscrow(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperrors.NewInternal("list expired escrow", err)
	}
	swept := 0
	for _, it := range expired {
		if err := s.store.DeleteItem(ctx, it.ID); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}
