// Package shop defines the rotating per-user item offer list behind the
// shop endpoints (§6 "GET /shop, POST /shop/reroll, POST /shop/purchase/{id}").
package shop

import "time"

// Offer is one item definition on sale in a rotation, at the price the
// rotation was rolled with (independent of the catalog's current
// PurchasePrice, so a later catalog change never retroactively reprices an
// already-offered rotation).
type Offer struct {
	ItemDefID string
	Price     int64
}

// Rotation is a user's current set of shop offers.
type Rotation struct {
	UserID    string
	Offers    []Offer
	RolledAt  time.Time
	ExpiresAt time.Time
}

// IsStale reports whether the rotation must be re-rolled before it can be
// shown or purchased from.
func (r Rotation) IsStale(now time.Time) bool {
	return r.ExpiresAt.IsZero() || !now.Before(r.ExpiresAt)
}

// Find returns the offer for itemDefID, if still present in the rotation.
func (r Rotation) Find(itemDefID string) (Offer, bool) {
	for _, o := range r.Offers {
		if o.ItemDefID == itemDefID {
			return o, true
		}
	}
	return Offer{}, false
}
