// Package economy composes cooldown, buff, inventory, and currency services
// into the three headline player commands: Play, Rob, and Bail (§4.8).
package economy

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/cooldown"
	economydomain "github.com/kingpin-stream/economy-core/internal/app/domain/economy"
	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	buffsvc "github.com/kingpin-stream/economy-core/internal/app/services/buff"
	cooldownsvc "github.com/kingpin-stream/economy-core/internal/app/services/cooldown"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// RobCommand is the cooldown.CommandType for the per-(attacker,target)
// robbery lock (§4.8 "Cooldown and anti-grief").
const RobCommand cooldown.CommandType = "rob"

// PlayResult reports what a Play call produced, mirroring the command API's
// response shape (§6 "POST /play").
type PlayResult struct {
	Success       bool
	Busted        bool
	WealthEarned  int64
	XPEarned      int64
	EventName     string
	CrateAwarded  bool
	CrateTier     string
	LeveledUp     bool
	NewLevel      int
	PromotedTier  formula.Tier
}

// RobResult reports what a Rob call produced.
type RobResult struct {
	Success           bool
	StolenWealth      int64
	ItemStolen        bool
	AttackerJailed    bool
	DefenderInsurance int64
}

// Service implements Play/Rob/Bail (§4.8).
type Service struct {
	store     storage.Store
	clock     clock.Clock
	rng       rng.Source
	cfg       config.EconomyConfig
	cooldowns *cooldownsvc.Service
	buffs     *buffsvc.Service
	inventory *inventorysvc.Service
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, src rng.Source, cfg config.EconomyConfig, cooldowns *cooldownsvc.Service, buffs *buffsvc.Service, inv *inventorysvc.Service) *Service {
	return &Service{store: store, clock: clk, rng: src, cfg: cfg, cooldowns: cooldowns, buffs: buffs, inventory: inv}
}

// Play runs the §4.8 Play algorithm.
func (s *Service) Play(ctx context.Context, userID string) (PlayResult, error) {
	jailStatus, err := s.cooldowns.JailStatus(ctx, nil, userID)
	if err != nil {
		return PlayResult{}, err
	}
	if jailStatus.Active {
		return PlayResult{}, apperrors.NewCooldown("play", jailStatus.RemainingSeconds)
	}

	var result PlayResult
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}

		// Re-validate jail status against the row just locked: the advisory
		// check above ran before WithTx opened and cannot see a jailing that
		// committed in the gap between it and LockUser.
		liveJail, jerr := s.cooldowns.JailStatus(ctx, tx, userID)
		if jerr != nil {
			return jerr
		}
		if liveJail.Active {
			return apperrors.NewCooldown("play", liveJail.RemainingSeconds)
		}

		juicernaut, jerr := s.buffs.HasJuicernaut(ctx, tx, userID)
		if jerr != nil {
			return jerr
		}

		if s.rng.Float64() < s.cfg.BustChance {
			if err := s.cooldowns.JailUser(ctx, tx, userID, time.Duration(s.cfg.JailDurationMins)*time.Minute); err != nil {
				return err
			}
			if _, err := tx.AppendEvent(ctx, gameevent.Event{
				UserID:    userID,
				Kind:      gameevent.KindPlay,
				CreatedAt: s.clock.Now(),
				Details:   map[string]interface{}{"success": false},
			}); err != nil {
				return apperrors.NewInternal("append bust event", err)
			}
			result = PlayResult{Success: false, Busted: true}
			return nil
		}

		tier := user.Tier()
		event := economydomain.SelectPlayEvent(economydomain.DefaultPlayEvents, tier, s.rng)
		tierMult := formula.TierMultiplier(tier)

		wealth := economydomain.RollBand(event.WealthMin, event.WealthMax, s.rng)
		xp := economydomain.RollBand(event.XPMin, event.XPMax, s.rng)

		wealthMult, merr := s.buffs.GetMultiplier(ctx, tx, userID, "wealth_multiplier")
		if merr != nil {
			return merr
		}
		xpMult, merr := s.buffs.GetMultiplier(ctx, tx, userID, "xp_multiplier")
		if merr != nil {
			return merr
		}

		wealthGain := int64(float64(wealth) * tierMult * wealthMult)
		xpGain := int64(float64(xp) * tierMult * xpMult)

		crateDropChance := s.cfg.CrateDropChance
		if juicernaut {
			crateDropChance *= s.cfg.LootMultiplier
		}
		crateAwarded := false
		crateTier := ""
		if s.rng.Float64() < crateDropChance {
			weights := economydomain.DefaultCrateTierWeights[tier]
			crateTier = formula.SampleCrateTier(weights, s.rng)
			if crateTier != "" {
				if def, found := s.findCrateDef(ctx, tx, crateTier); found {
					if _, _, err := s.inventory.AddItem(ctx, tx, userID, def, inventorysvc.AddOptions{}); err != nil {
						return err
					}
					crateAwarded = true
				}
			}
		}

		user.Wealth += wealthGain
		user.XP += xpGain
		user.TotalPlayCount++
		previousLevel, newLevel := user.RecomputeLevel()
		previousTier := formula.TierFromLevel(previousLevel)
		newTier := user.Tier()
		leveledUp := newLevel > previousLevel
		promoted := leveledUp && newTier != previousTier

		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}
		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindPlay,
			WealthDelta: wealthGain,
			XPDelta:     xpGain,
			CreatedAt:   s.clock.Now(),
			Details:     map[string]interface{}{"success": true, "event_name": event.Name},
		}); err != nil {
			return apperrors.NewInternal("append play event", err)
		}

		result = PlayResult{
			Success:      true,
			WealthEarned: wealthGain,
			XPEarned:     xpGain,
			EventName:    event.Name,
			CrateAwarded: crateAwarded,
			CrateTier:    crateTier,
			LeveledUp:    leveledUp,
			NewLevel:     newLevel,
		}
		if promoted {
			result.PromotedTier = newTier
		}
		return nil
	})
	if txErr != nil {
		return PlayResult{}, txErr
	}
	return result, nil
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

// Rob runs the §4.8 Rob algorithm against a target username-resolved user
// id. Callers are responsible for resolving target to a user id and
// rejecting self-targeting before calling.
func (s *Service) Rob(ctx context.Context, attackerID, targetID string) (RobResult, error) {
	if attackerID == targetID {
		return RobResult{}, apperrors.NewPolicy("cannot rob yourself")
	}
	attackerJail, err := s.cooldowns.JailStatus(ctx, nil, attackerID)
	if err != nil {
		return RobResult{}, err
	}
	if attackerJail.Active {
		return RobResult{}, apperrors.NewCooldown("rob", attackerJail.RemainingSeconds)
	}
	robCooldown, err := s.cooldowns.HasCooldown(ctx, nil, attackerID, RobCommand, targetID)
	if err != nil {
		return RobResult{}, err
	}
	if robCooldown.Active {
		return RobResult{}, apperrors.NewCooldown("rob", robCooldown.RemainingSeconds)
	}

	var result RobResult
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		attacker, target, lerr := tx.LockUsersOrdered(ctx, attackerID, targetID)
		if lerr != nil {
			return apperrors.NewNotFound("user", targetID)
		}

		// Re-validate against the rows just locked; the two advisory checks
		// above ran before WithTx opened.
		liveJail, jerr := s.cooldowns.JailStatus(ctx, tx, attacker.ID)
		if jerr != nil {
			return jerr
		}
		if liveJail.Active {
			return apperrors.NewCooldown("rob", liveJail.RemainingSeconds)
		}
		liveRobCooldown, rerr := s.cooldowns.HasCooldown(ctx, tx, attacker.ID, RobCommand, target.ID)
		if rerr != nil {
			return rerr
		}
		if liveRobCooldown.Active {
			return apperrors.NewCooldown("rob", liveRobCooldown.RemainingSeconds)
		}

		if target.Wealth <= 0 {
			return apperrors.NewPolicy("target has no wealth to steal")
		}
		immune, ierr := s.buffs.HasJuicernaut(ctx, tx, target.ID)
		if ierr != nil {
			return ierr
		}
		if immune {
			return apperrors.NewPolicy("target is immune to robbery")
		}

		weaponBonus, armorReduction := s.combatBonuses(ctx, tx, attacker.ID, target.ID)
		successRate := formula.RobberySuccessRate(weaponBonus, armorReduction, attacker.Level-target.Level)

		success := s.rng.Float64() < successRate
		if success {
			pct := s.cfg.StealPctMin + s.rng.Float64()*(s.cfg.StealPctMax-s.cfg.StealPctMin)
			steal := formula.StealAmount(target.Wealth, pct)
			insurance := int64(float64(steal) * s.cfg.DefenderInsurancePct)
			houseCut := int64(float64(steal) * s.cfg.RobHouseCutPct)
			net := steal - houseCut

			target.Wealth -= steal
			target.Wealth += insurance
			attacker.Wealth += net
			if target.Wealth < 0 {
				target.Wealth = 0
			}

			if _, err := tx.UpdateUser(ctx, target); err != nil {
				return apperrors.NewInternal("debit target", err)
			}
			if _, err := tx.UpdateUser(ctx, attacker); err != nil {
				return apperrors.NewInternal("credit attacker", err)
			}

			itemStolen := false
			if s.rng.Float64() < s.cfg.ItemStealChance {
				if it, ok := s.pickNonEquippedItem(ctx, tx, target.ID); ok {
					it.UserID = attacker.ID
					it.IsEquipped = false
					it.Slot = ""
					if _, err := tx.UpdateItem(ctx, it); err == nil {
						itemStolen = true
					}
				}
			}

			if _, err := s.inventory.DegradeDefenderArmor(ctx, tx, target.ID, s.rng); err != nil {
				return err
			}
			if _, err := s.inventory.DegradeAttackerWeapon(ctx, tx, attacker.ID, s.rng); err != nil {
				return err
			}

			if _, err := tx.AppendEvent(ctx, gameevent.Event{UserID: attacker.ID, Kind: gameevent.KindRob, WealthDelta: net, CreatedAt: s.clock.Now(), Details: map[string]interface{}{"target": target.ID, "success": true}}); err != nil {
				return apperrors.NewInternal("append rob event", err)
			}
			if _, err := tx.AppendEvent(ctx, gameevent.Event{UserID: target.ID, Kind: gameevent.KindRob, WealthDelta: -steal + insurance, CreatedAt: s.clock.Now(), Details: map[string]interface{}{"attacker": attacker.ID, "success": true}}); err != nil {
				return apperrors.NewInternal("append rob event", err)
			}
			if err := s.cooldowns.SetCooldown(ctx, tx, attacker.ID, RobCommand, time.Duration(s.cfg.RobCooldownSecs)*time.Second, target.ID); err != nil {
				return err
			}
			result = RobResult{Success: true, StolenWealth: net, ItemStolen: itemStolen, DefenderInsurance: insurance}
			return nil
		}

		if err := s.cooldowns.JailUser(ctx, tx, attacker.ID, time.Duration(s.cfg.JailDurationMins)*time.Minute); err != nil {
			return err
		}
		if _, err := s.inventory.DegradeAttackerWeapon(ctx, tx, attacker.ID, s.rng); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, gameevent.Event{UserID: attacker.ID, Kind: gameevent.KindRob, CreatedAt: s.clock.Now(), Details: map[string]interface{}{"target": target.ID, "success": false}}); err != nil {
			return apperrors.NewInternal("append rob_failed event", err)
		}
		if err := s.cooldowns.SetCooldown(ctx, tx, attacker.ID, RobCommand, time.Duration(s.cfg.RobCooldownSecs)*time.Second, target.ID); err != nil {
			return err
		}
		result = RobResult{Success: false, AttackerJailed: true}
		return nil
	})
	if txErr != nil {
		return RobResult{}, txErr
	}
	return result, nil
}

// combatBonuses reads the attacker's equipped weapon and the target's
// equipped armor combat stats. Active buffs are not consulted; only item
// bonuses reach the success rate.
func (s *Service) combatBonuses(ctx context.Context, tx storage.Store, attackerID, targetID string) (weaponBonus, armorReduction float64) {
	weaponBonus = s.equippedCombatBonus(ctx, tx, attackerID, inventory.ItemWeapon)
	armorReduction = s.equippedCombatBonus(ctx, tx, targetID, inventory.ItemArmor)
	return weaponBonus, armorReduction
}

func (s *Service) equippedCombatBonus(ctx context.Context, tx storage.Store, userID string, slot inventory.ItemType) float64 {
	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return 0
	}
	for _, it := range rows {
		if !it.IsEquipped || it.Slot != inventory.Slot(slot) {
			continue
		}
		def, derr := tx.GetItemDef(ctx, it.ItemDefID)
		if derr != nil {
			continue
		}
		return def.CombatBonus
	}
	return 0
}

func (s *Service) pickNonEquippedItem(ctx context.Context, tx storage.Store, userID string) (inventory.Item, bool) {
	rows, err := tx.ListUserItems(ctx, userID)
	if err != nil {
		return inventory.Item{}, false
	}
	for _, it := range rows {
		if !it.IsEquipped && !it.IsEscrowed {
			return it, true
		}
	}
	return inventory.Item{}, false
}

// PayBail delegates to the cooldown service's PayBail, closing over the
// configured minimum bail (§4.4).
func (s *Service) PayBail(ctx context.Context, userID string) (cost, newWealth int64, err error) {
	return s.cooldowns.PayBail(ctx, userID, func(wealth int64) int64 {
		return formula.BailCost(wealth, s.cfg.MinBail)
	})
}
