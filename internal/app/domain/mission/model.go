// Package mission defines mission templates, per-user assignments, and
// claim records (§3 Mission template/User mission/Mission completion, §4.9).
package mission

import (
	"math"
	"sort"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
)

// Type distinguishes the mission batch period.
type Type string

const (
	Daily  Type = "daily"
	Weekly Type = "weekly"
)

// Status is the lifecycle of a single mission assignment (§4.15).
type Status string

const (
	StatusActive  Status = "active"
	StatusClaimed Status = "claimed"
	StatusExpired Status = "expired"
)

// BatchSize returns the number of missions assigned per batch for a type
// (§4.9: 3 daily / 5 weekly).
func BatchSize(t Type) int {
	if t == Weekly {
		return 5
	}
	return 3
}

// Template is a static mission definition.
type Template struct {
	ID                 string
	MissionType        Type
	Category           string
	ObjectiveType      string
	ObjectiveBaseValue int64
	RewardWealthBase   int64
	RewardXPBase       int64
	IsLuckBased        bool
}

// Scale applies a tier multiplier to a template's objective/reward values
// (§4.9 Scaling).
func (t Template) Scale(tierMultiplier float64) (objective, rewardWealth, rewardXP int64) {
	objective = int64(math.Ceil(float64(t.ObjectiveBaseValue) * tierMultiplier))
	rewardWealth = int64(math.Floor(float64(t.RewardWealthBase) * tierMultiplier))
	rewardXP = int64(math.Floor(float64(t.RewardXPBase) * tierMultiplier))
	return
}

// Assignment is one row per mission assignment.
type Assignment struct {
	ID               string
	UserID           string
	TemplateID       string
	MissionType       Type
	Category          string
	ObjectiveType     string
	ObjectiveValue    int64
	CurrentProgress   int64
	RewardWealth      int64
	RewardXP          int64
	Status            Status
	ExpiresAt         time.Time
}

// IsCompleted reports whether progress has reached the objective.
func (a Assignment) IsCompleted() bool {
	return a.CurrentProgress >= a.ObjectiveValue
}

// SelectBatch picks size templates from the eligible set, enforcing at most
// one per category and at most one luck-based template, filling arbitrarily
// if variety cannot be met (§4.9 Selection). The pool is sorted by template
// ID and then shuffled with src, so a given src yields the same batch; the
// fallback fill takes leftovers in that shuffled order.
func SelectBatch(eligible []Template, size int, src rng.Source) []Template {
	pool := make([]Template, len(eligible))
	copy(pool, eligible)
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	shuffle(pool, src)

	var chosen []Template
	usedCategory := make(map[string]bool)
	usedLuck := false
	var leftover []Template

	for _, t := range pool {
		if len(chosen) >= size {
			leftover = append(leftover, t)
			continue
		}
		if usedCategory[t.Category] {
			leftover = append(leftover, t)
			continue
		}
		if t.IsLuckBased && usedLuck {
			leftover = append(leftover, t)
			continue
		}
		chosen = append(chosen, t)
		usedCategory[t.Category] = true
		if t.IsLuckBased {
			usedLuck = true
		}
	}

	for _, t := range leftover {
		if len(chosen) >= size {
			break
		}
		chosen = append(chosen, t)
	}
	return chosen
}

func shuffle(items []Template, src rng.Source) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Completion records an all-or-nothing batch claim (§4.9 Claim).
type Completion struct {
	ID           string
	UserID       string
	MissionType  Type
	PeriodKey    string // e.g. "2026-07-31" for daily, ISO week for weekly
	TotalWealth  int64
	TotalXP      int64
	ClaimedAt    time.Time
}

// PeriodKey derives the cap/claim-dedup period key for a given instant and
// mission type: UTC calendar day for daily; for weekly, the ISO (year, week)
// of the instant one day later, so each weekly key spans UTC Sunday 00:00
// through Saturday 23:59 (§4.9 "Period boundaries are UTC midnight (daily)
// and UTC Sunday 00:00 (weekly)").
func PeriodKey(t Type, at time.Time) string {
	at = at.UTC()
	if t == Weekly {
		year, week := at.AddDate(0, 0, 1).ISOWeek()
		return isoWeekKey(year, week)
	}
	return at.Format("2006-01-02")
}

func isoWeekKey(year, week int) string {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "-W" + weekPad(week)
}

func weekPad(week int) string {
	if week < 10 {
		return "0" + itoa(week)
	}
	return itoa(week)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
