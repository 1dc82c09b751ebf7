// Package mission implements lazy batch assignment, progress tracking, and
// all-or-nothing claim with a per-period wealth cap (§4.9).
package mission

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/domain/mission"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// Service implements mission assignment, progress, and claim (§4.9).
type Service struct {
	store     storage.Store
	clock     clock.Clock
	rng       rng.Source
	cfg       config.EconomyConfig
	inventory *inventorysvc.Service
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, src rng.Source, cfg config.EconomyConfig, inv *inventorysvc.Service) *Service {
	return &Service{store: store, clock: clk, rng: src, cfg: cfg, inventory: inv}
}

// EnsureAssigned lazily expires last period's batch (if any) and assigns a
// fresh one when the user holds no active rows of the given type (§4.9
// Assignment).
func (s *Service) EnsureAssigned(ctx context.Context, tx storage.Store, userID string, t mission.Type, tierMultiplier float64) ([]mission.Assignment, error) {
	rows, err := tx.ListUserAssignments(ctx, userID, t)
	if err != nil {
		return nil, apperrors.NewInternal("list assignments", err)
	}
	now := s.clock.Now()
	var active []mission.Assignment
	for _, r := range rows {
		if r.Status == mission.StatusActive && r.ExpiresAt.After(now) {
			active = append(active, r)
		}
	}
	if len(active) > 0 {
		return active, nil
	}

	for _, r := range rows {
		if r.Status != mission.StatusActive {
			continue
		}
		r.Status = mission.StatusExpired
		if _, err := tx.UpdateAssignment(ctx, r); err != nil {
			return nil, apperrors.NewInternal("expire stale assignment", err)
		}
	}

	templates, err := tx.ListTemplates(ctx, t)
	if err != nil {
		return nil, apperrors.NewInternal("list templates", err)
	}
	batch := mission.SelectBatch(templates, mission.BatchSize(t), s.rng)
	assigned := make([]mission.Assignment, 0, len(batch))
	for _, tmpl := range batch {
		objective, rewardWealth, rewardXP := tmpl.Scale(tierMultiplier)
		a, err := tx.CreateAssignment(ctx, mission.Assignment{
			UserID:         userID,
			TemplateID:     tmpl.ID,
			MissionType:    t,
			Category:       tmpl.Category,
			ObjectiveType:  tmpl.ObjectiveType,
			ObjectiveValue: objective,
			RewardWealth:   rewardWealth,
			RewardXP:       rewardXP,
			Status:         mission.StatusActive,
			ExpiresAt:      nextPeriodBoundary(t, now),
		})
		if err != nil {
			return nil, apperrors.NewInternal("create assignment", err)
		}
		assigned = append(assigned, a)
	}
	return assigned, nil
}

// Increment advances progress by n on every active row matching
// objectiveType (§4.9 Progress).
func (s *Service) Increment(ctx context.Context, tx storage.Store, userID string, t mission.Type, objectiveType string, n int64) error {
	return s.updateMatching(ctx, tx, userID, t, objectiveType, func(a mission.Assignment) mission.Assignment {
		a.CurrentProgress += n
		return a
	})
}

// SetAbsolute sets progress to v on every active row matching objectiveType.
func (s *Service) SetAbsolute(ctx context.Context, tx storage.Store, userID string, t mission.Type, objectiveType string, v int64) error {
	return s.updateMatching(ctx, tx, userID, t, objectiveType, func(a mission.Assignment) mission.Assignment {
		if v > a.CurrentProgress {
			a.CurrentProgress = v
		}
		return a
	})
}

func (s *Service) updateMatching(ctx context.Context, tx storage.Store, userID string, t mission.Type, objectiveType string, mutate func(mission.Assignment) mission.Assignment) error {
	rows, err := tx.ListUserAssignments(ctx, userID, t)
	if err != nil {
		return apperrors.NewInternal("list assignments", err)
	}
	for _, r := range rows {
		if r.Status != mission.StatusActive || r.ObjectiveType != objectiveType {
			continue
		}
		r = mutate(r)
		if _, err := tx.UpdateAssignment(ctx, r); err != nil {
			return apperrors.NewInternal("update assignment progress", err)
		}
	}
	return nil
}

// Claim runs the all-or-nothing batch claim with per-period wealth cap
// (§4.9 Claim).
func (s *Service) Claim(ctx context.Context, userID string, t mission.Type) (awardedWealth, awardedXP int64, err error) {
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		rows, rerr := tx.ListUserAssignments(ctx, userID, t)
		if rerr != nil {
			return apperrors.NewInternal("list assignments", rerr)
		}
		var batch []mission.Assignment
		for _, r := range rows {
			if r.Status == mission.StatusActive {
				batch = append(batch, r)
			}
		}
		if len(batch) == 0 {
			return apperrors.NewNotFound("mission batch", string(t))
		}
		for _, r := range batch {
			if !r.IsCompleted() {
				return apperrors.NewPolicy("mission batch is not fully completed")
			}
		}

		now := s.clock.Now()
		periodKey := mission.PeriodKey(t, now)
		existing, cerr := tx.GetCompletion(ctx, userID, t, periodKey)
		if cerr != nil {
			return apperrors.NewInternal("load completion", cerr)
		}
		if existing != nil {
			return apperrors.NewConflict("mission batch already claimed this period")
		}

		var baseWealth, baseXP int64
		for _, r := range batch {
			baseWealth += r.RewardWealth
			baseXP += r.RewardXP
		}
		bonusWealth, bonusXP, bonusCrateTier := s.bonus(t)
		totalXP := baseXP + bonusXP
		rawWealth := baseWealth + bonusWealth

		cap := s.wealthCap(t)
		alreadyClaimed, sumErr := s.claimedThisPeriod(ctx, tx, userID, t, periodKey)
		if sumErr != nil {
			return sumErr
		}
		remaining := cap - alreadyClaimed
		if remaining < 0 {
			remaining = 0
		}
		totalWealth := rawWealth
		if totalWealth > remaining {
			totalWealth = remaining
		}

		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		user.Wealth += totalWealth
		user.XP += totalXP
		user.RecomputeLevel()
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("credit user", err)
		}

		for _, r := range batch {
			r.Status = mission.StatusClaimed
			if _, err := tx.UpdateAssignment(ctx, r); err != nil {
				return apperrors.NewInternal("mark assignment claimed", err)
			}
		}
		if _, err := tx.CreateCompletion(ctx, mission.Completion{
			UserID:      userID,
			MissionType: t,
			PeriodKey:   periodKey,
			TotalWealth: totalWealth,
			TotalXP:     totalXP,
			ClaimedAt:   now,
		}); err != nil {
			return apperrors.NewInternal("create completion", err)
		}

		if bonusCrateTier != "" {
			if def, found := s.findCrateDef(ctx, tx, bonusCrateTier); found {
				if _, _, err := s.inventory.AddItem(ctx, tx, userID, def, inventorysvc.AddOptions{}); err != nil {
					return err
				}
			}
		}

		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindMission,
			WealthDelta: totalWealth,
			XPDelta:     totalXP,
			CreatedAt:   now,
			Details:     map[string]interface{}{"mission_type": string(t)},
		}); err != nil {
			return apperrors.NewInternal("append mission claim event", err)
		}

		awardedWealth, awardedXP = totalWealth, totalXP
		return nil
	})
	if txErr != nil {
		return 0, 0, txErr
	}
	return awardedWealth, awardedXP, nil
}

func (s *Service) bonus(t mission.Type) (wealth, xp int64, crateTier string) {
	if t == mission.Weekly {
		return s.cfg.MissionWeeklyBonusWealth, s.cfg.MissionWeeklyBonusXP, s.cfg.MissionBonusCrateTier
	}
	return s.cfg.MissionDailyBonusWealth, s.cfg.MissionDailyBonusXP, s.cfg.MissionBonusCrateTier
}

func (s *Service) wealthCap(t mission.Type) int64 {
	if t == mission.Weekly {
		return s.cfg.MissionWeeklyWealthCap
	}
	return s.cfg.MissionDailyWealthCap
}

// claimedThisPeriod sums wealth already claimed this period; a single
// completion row per (user, type, period) makes this at most one lookup,
// since Claim itself enforces uniqueness going forward, but an
// administrative wealth cap is still computed defensively from 0 when no
// completion exists yet.
func (s *Service) claimedThisPeriod(ctx context.Context, tx storage.Store, userID string, t mission.Type, periodKey string) (int64, error) {
	existing, err := tx.GetCompletion(ctx, userID, t, periodKey)
	if err != nil {
		return 0, apperrors.NewInternal("load completion", err)
	}
	if existing == nil {
		return 0, nil
	}
	return existing.TotalWealth, nil
}

func (s *Service) findCrateDef(ctx context.Context, tx storage.Store, tier string) (inventory.ItemDef, bool) {
	defs, err := tx.ListItemDefs(ctx)
	if err != nil {
		return inventory.ItemDef{}, false
	}
	for _, d := range defs {
		if d.Type == inventory.ItemCrate && string(d.Tier) == tier {
			return d, true
		}
	}
	return inventory.ItemDef{}, false
}

// SweepExpiredAssignments transitions stale active rows past their period
// boundary to expired (scheduler-driven backstop for users who never issue
// another command in a new period).
func (s *Service) SweepExpiredAssignments(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ListExpiredAssignments(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperrors.NewInternal("list expired assignments", err)
	}
	swept := 0
	for _, a := range expired {
		a.Status = mission.StatusExpired
		if _, err := s.store.UpdateAssignment(ctx, a); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}

func nextPeriodBoundary(t mission.Type, now time.Time) time.Time {
	now = now.UTC()
	if t == mission.Weekly {
		daysUntilSunday := (7 - int(now.Weekday())) % 7
		if daysUntilSunday == 0 {
			daysUntilSunday = 7
		}
		d := now.AddDate(0, 0, daysUntilSunday)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	d := now.AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
