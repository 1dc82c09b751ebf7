// Package cooldown defines the Cooldown/Jail locking entity (§3 Cooldown, §4.4).
package cooldown

import "time"

// CommandType distinguishes which command's cooldown/jail lock a row tracks.
type CommandType string

// Jail is the distinguished command type representing a player's jail
// state (§4.4).
const Jail CommandType = "jail"

// Cooldown is a (user, command, target) expiring lock. target is "" for
// non-targeted cooldowns (e.g. the per-user rob cooldown is targeted by the
// victim's identifier; jail is untargeted). JailedUntil is set only for
// Jail rows and is nil otherwise.
type Cooldown struct {
	UserID           string
	CommandType      CommandType
	TargetIdentifier string
	ExpiresAt        time.Time
	JailedUntil      *time.Time
}

// Status is the public view returned by HasCooldown.
type Status struct {
	Active           bool
	ExpiresAt        time.Time
	RemainingSeconds int64
}

// StatusAt computes Status for a cooldown row (or its absence) at instant now.
func StatusAt(c *Cooldown, now time.Time) Status {
	if c == nil || !c.ExpiresAt.After(now) {
		return Status{Active: false}
	}
	return Status{
		Active:           true,
		ExpiresAt:        c.ExpiresAt,
		RemainingSeconds: int64(c.ExpiresAt.Sub(now).Seconds()),
	}
}
