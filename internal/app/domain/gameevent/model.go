// Package gameevent defines the append-only audit trail row emitted
// alongside every wealth/XP-affecting mutation (§6 Admin surface, §6
// Persistent state layout "game_events").
package gameevent

import "time"

// Kind classifies what produced the event.
type Kind string

const (
	KindPlay         Kind = "play"
	KindRob          Kind = "rob"
	KindBail         Kind = "bail"
	KindGambling     Kind = "gambling"
	KindMission      Kind = "mission"
	KindBusiness     Kind = "business"
	KindConsumable   Kind = "consumable"
	KindShop         Kind = "shop"
	KindMerge        Kind = "merge"
	KindAdminAdjust  Kind = "admin_adjust"
)

// Event is one audit row.
type Event struct {
	ID          string
	UserID      string
	Kind        Kind
	WealthDelta int64
	XPDelta     int64
	Details     map[string]interface{}
	CreatedAt   time.Time
}
