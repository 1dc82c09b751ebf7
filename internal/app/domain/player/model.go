// Package player defines the User entity and its derived state (§3 User).
package player

import (
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
)

// User is a player's persistent economy-core state. Platform identifiers are
// nullable and at least one must be set at creation; once a platform id is
// present it is unique across all non-tombstoned users.
type User struct {
	ID  string
	Kick, Twitch, Discord string

	Wealth int64
	XP     int64
	Level  int

	Tokens            int64
	TokensEarnedToday int64
	LastTokenReset    time.Time

	Bonds              int64
	LastBondConversion time.Time

	CheckinStreak   int
	TotalPlayCount  int64
	Wins, Losses    int64

	FactionID string // "" when unset

	// MergedIntoUserID is non-empty once this user has been tombstoned by an
	// account merge (§4.12). A tombstoned user is never selected by command
	// paths.
	MergedIntoUserID string
	MergedAt         time.Time
	MergeAuditLog    string // JSON snapshot captured at merge time

	// Banned blocks every command path for this user (§6 Admin surface
	// "player ban/unban"); unlike a merge tombstone it is reversible.
	Banned bool

	CreatedAt, UpdatedAt time.Time
}

// IsMerged reports whether the user has been tombstoned.
func (u User) IsMerged() bool {
	return u.MergedIntoUserID != ""
}

// PlatformIDs returns "platform|id" keys for each platform identifier this
// user has set, for store indexing.
func (u User) PlatformIDs() []string {
	var out []string
	if u.Kick != "" {
		out = append(out, "kick|"+u.Kick)
	}
	if u.Twitch != "" {
		out = append(out, "twitch|"+u.Twitch)
	}
	if u.Discord != "" {
		out = append(out, "discord|"+u.Discord)
	}
	return out
}

// Tier derives the player's status tier from level (§4.3).
func (u User) Tier() formula.Tier {
	return formula.TierFromLevel(u.Level)
}

// RecomputeLevel recalculates Level from the current XP total (§4.3),
// returning the previous level for leveled-up detection.
func (u *User) RecomputeLevel() (previous, current int) {
	previous = u.Level
	u.Level = formula.LevelFromXP(u.XP)
	return previous, u.Level
}
