// Package notification defines the post-commit delivery intent recorded
// alongside game events (§5 "external side-effects are dispatched only
// after the originating transaction has committed", §6 "user_notifications").
package notification

import "time"

// Kind classifies what produced the notification.
type Kind string

const (
	KindCrateDrop     Kind = "crate_drop"
	KindTierPromotion Kind = "tier_promotion"
	KindJailed        Kind = "jailed"
	KindMerge         Kind = "merge"
	KindMission       Kind = "mission"
	KindGambling      Kind = "gambling"
)

// Notification is one delivery intent, recorded after the transaction that
// produced it has already committed. It never participates in the
// transaction itself: a failed delivery never rolls back game state.
type Notification struct {
	ID        string
	UserID    string
	Kind      Kind
	Message   string
	Read      bool
	CreatedAt time.Time
}
