// Package merge defines the account-merge preview/execute projections
// (§4.12 Account merge).
package merge

import "time"

// Warning is a non-fatal caution surfaced by Preview (e.g. faction
// conflict).
type Warning string

const (
	WarnFactionConflict Warning = "faction_conflict"
	WarnDuplicateTitles Warning = "duplicate_titles"
)

// Projection is the pure "what would happen" result of a merge preview.
type Projection struct {
	PrimaryUserID      string
	SecondaryUserID    string
	CombinedWealth     int64
	CombinedXP         int64
	CombinedTokens     int64
	CombinedBonds      int64
	CombinedPlayCount  int64
	CombinedWins       int64
	CombinedLosses     int64
	CombinedStreak     int64
	Warnings           []Warning
}

// AuditSnapshot captures the secondary account's pre-merge state, recorded
// onto the tombstoned row (§4.12 step 7).
type AuditSnapshot struct {
	Wealth        int64
	XP            int64
	Tokens        int64
	Bonds         int64
	InventoryCount int
	CapturedAt    time.Time
}

// MaxStreak is the checkin_streak combination rule (§4.12 step 2).
func MaxStreak(primary, secondary int64) int64 {
	if secondary > primary {
		return secondary
	}
	return primary
}
