// Package inventory defines item catalog entries and owned item instances
// (§3 Item definition, Inventory row, §4.5).
package inventory

import "time"

// ItemType is the category of an item definition.
type ItemType string

const (
	ItemWeapon   ItemType = "weapon"
	ItemArmor    ItemType = "armor"
	ItemBusiness ItemType = "business"
	ItemHousing  ItemType = "housing"
	ItemCrate    ItemType = "crate"
)

// ItemTier ranks an item definition's rarity.
type ItemTier string

const (
	TierCommon    ItemTier = "common"
	TierUncommon  ItemTier = "uncommon"
	TierRare      ItemTier = "rare"
	TierLegendary ItemTier = "legendary"
)

// ItemDef is a static catalog entry.
type ItemDef struct {
	ID             string
	Name           string
	Type           ItemType
	Tier           ItemTier
	BaseDurability int
	PurchasePrice  int64
	SellPrice      int64

	// CombatBonus applies to weapon/armor items (e.g. robbery success rate
	// bonus); BusinessDailyRevenue and BusinessOperatingCost apply to
	// business items (§4.10).
	CombatBonus           float64
	BusinessDailyRevenue  int64
	BusinessOperatingCost int64
}

// Limits (§3 Inventory row invariants).
const (
	MaxNonEscrowRows = 10
	MaxEscrowRows    = 3
	MaxBusinessRows  = 3
	// BreakThreshold is the durability value at or below which an item is
	// destroyed.
	BreakThreshold = 0
)

// Slot is an equipment slot; an item's slot always equals its item type when
// equipped.
type Slot string

// Item is an owned instance of an ItemDef.
type Item struct {
	ID              string
	UserID          string
	ItemDefID       string
	Durability      int
	IsEquipped      bool
	Slot            Slot // "" when unequipped
	IsEscrowed      bool
	EscrowExpiresAt time.Time // zero when not escrowed
	CreatedAt       time.Time
}

// IsExpired reports whether an escrowed item's TTL has passed at instant now.
func (i Item) IsExpired(now time.Time) bool {
	return i.IsEscrowed && !i.EscrowExpiresAt.IsZero() && now.After(i.EscrowExpiresAt)
}

// Destroyed reports whether durability has reached the break threshold.
func (i Item) Destroyed() bool {
	return i.Durability <= BreakThreshold
}

// StoredIn describes where AddItem placed a new row.
type StoredIn string

const (
	StoredInInventory StoredIn = "inventory"
	StoredInEscrow    StoredIn = "escrow"
)
