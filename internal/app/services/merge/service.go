// Package merge implements account-merge preview and execute (§4.12).
package merge

import (
	"context"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/merge"
	notificationdomain "github.com/kingpin-stream/economy-core/internal/app/domain/notification"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	notificationsvc "github.com/kingpin-stream/economy-core/internal/app/services/notification"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// Service implements Preview/Execute account merges (§4.12).
type Service struct {
	store        storage.Store
	clock        clock.Clock
	notification *notificationsvc.Service
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, notification *notificationsvc.Service) *Service {
	return &Service{store: store, clock: clk, notification: notification}
}

// Preview returns a pure "what would happen" projection plus any warnings,
// without mutating state (§4.12 Preview).
func (s *Service) Preview(ctx context.Context, primaryID, secondaryID string) (merge.Projection, error) {
	primary, perr := s.store.GetUser(ctx, primaryID)
	if perr != nil {
		return merge.Projection{}, apperrors.NewNotFound("user", primaryID)
	}
	secondary, serr := s.store.GetUser(ctx, secondaryID)
	if serr != nil {
		return merge.Projection{}, apperrors.NewNotFound("user", secondaryID)
	}
	if secondary.IsMerged() {
		return merge.Projection{}, apperrors.NewConflict("secondary account is already merged")
	}

	items, ierr := s.store.ListUserItems(ctx, secondaryID)
	if ierr != nil {
		return merge.Projection{}, apperrors.NewInternal("list secondary items", ierr)
	}

	projection := merge.Projection{
		PrimaryUserID:     primaryID,
		SecondaryUserID:   secondaryID,
		CombinedWealth:    primary.Wealth + secondary.Wealth,
		CombinedXP:        primary.XP + secondary.XP,
		CombinedTokens:    primary.Tokens + secondary.Tokens,
		CombinedBonds:     primary.Bonds + secondary.Bonds,
		CombinedPlayCount: primary.TotalPlayCount + secondary.TotalPlayCount,
		CombinedWins:      primary.Wins + secondary.Wins,
		CombinedLosses:    primary.Losses + secondary.Losses,
		CombinedStreak:    merge.MaxStreak(int64(primary.CheckinStreak), int64(secondary.CheckinStreak)),
	}
	_ = items
	if primary.FactionID != "" && secondary.FactionID != "" && primary.FactionID != secondary.FactionID {
		projection.Warnings = append(projection.Warnings, merge.WarnFactionConflict)
	}
	return projection, nil
}

// Execute merges secondary into primary in a single transaction (§4.12
// Execute). The caller is responsible for enforcing an operator-confirmed
// intent upstream; Execute itself only enforces the domain invariants.
func (s *Service) Execute(ctx context.Context, primaryID, secondaryID string) (merge.Projection, error) {
	if primaryID == secondaryID {
		return merge.Projection{}, apperrors.NewPolicy("cannot merge an account into itself")
	}
	var projection merge.Projection
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		primary, secondary, lerr := tx.LockUsersOrdered(ctx, primaryID, secondaryID)
		if lerr != nil {
			return apperrors.NewNotFound("user", primaryID)
		}
		if secondary.IsMerged() {
			return apperrors.NewConflict("secondary account is already merged")
		}

		itemCount, cerr := tx.CountUserItems(ctx, secondaryID, false)
		if cerr != nil {
			return apperrors.NewInternal("count secondary items", cerr)
		}
		escrowCount, eerr := tx.CountUserItems(ctx, secondaryID, true)
		if eerr != nil {
			return apperrors.NewInternal("count secondary escrow", eerr)
		}

		snapshot := merge.AuditSnapshot{
			Wealth:         secondary.Wealth,
			XP:             secondary.XP,
			Tokens:         secondary.Tokens,
			Bonds:          secondary.Bonds,
			InventoryCount: itemCount + escrowCount,
			CapturedAt:     s.clock.Now(),
		}

		// Step 1: move platform identifiers from secondary to primary,
		// clearing them on secondary to avoid unique-constraint collisions.
		if secondary.Kick != "" && primary.Kick == "" {
			primary.Kick, secondary.Kick = secondary.Kick, ""
		}
		if secondary.Twitch != "" && primary.Twitch == "" {
			primary.Twitch, secondary.Twitch = secondary.Twitch, ""
		}
		if secondary.Discord != "" && primary.Discord == "" {
			primary.Discord, secondary.Discord = secondary.Discord, ""
		}

		// Step 2: credit primary.
		primary.Wealth += secondary.Wealth
		primary.XP += secondary.XP
		primary.RecomputeLevel()
		primary.Tokens += secondary.Tokens
		primary.Bonds += secondary.Bonds
		primary.TotalPlayCount += secondary.TotalPlayCount
		primary.Wins += secondary.Wins
		primary.Losses += secondary.Losses
		if secondary.CheckinStreak > primary.CheckinStreak {
			primary.CheckinStreak = secondary.CheckinStreak
		}

		now := s.clock.Now()

		// Step 7: tombstone secondary before reassignment so a racing
		// command sees the merged flag immediately.
		secondary.Wealth, secondary.XP, secondary.Tokens, secondary.Bonds = 0, 0, 0, 0
		secondary.MergedIntoUserID = primaryID
		secondary.MergedAt = now

		if _, err := tx.UpdateUser(ctx, primary); err != nil {
			return apperrors.NewInternal("credit primary", err)
		}
		if _, err := tx.UpdateUser(ctx, secondary); err != nil {
			return apperrors.NewInternal("tombstone secondary", err)
		}

		// Step 3-6: reassign rows referenced by user_id (inventory,
		// histories, transactions, sessions, gambling stats) and drop
		// transient per-user rows (missions, cooldowns, buffs,
		// notifications) on the secondary; left to the storage layer since
		// each backend knows its own table set (§6).
		if err := tx.ReassignUserRows(ctx, secondaryID, primaryID); err != nil {
			return apperrors.NewInternal("reassign secondary rows", err)
		}

		if err := tx.RecordMerge(ctx, secondaryID, snapshot, primaryID, now); err != nil {
			return apperrors.NewInternal("record merge audit snapshot", err)
		}

		if _, err := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      primaryID,
			Kind:        gameevent.KindMerge,
			WealthDelta: snapshot.Wealth,
			XPDelta:     snapshot.XP,
			CreatedAt:   now,
			Details:     map[string]interface{}{"secondary_user_id": secondaryID},
		}); err != nil {
			return apperrors.NewInternal("append merge event", err)
		}

		projection = merge.Projection{
			PrimaryUserID:     primaryID,
			SecondaryUserID:   secondaryID,
			CombinedWealth:    primary.Wealth,
			CombinedXP:        primary.XP,
			CombinedTokens:    primary.Tokens,
			CombinedBonds:     primary.Bonds,
			CombinedPlayCount: primary.TotalPlayCount,
			CombinedWins:      primary.Wins,
			CombinedLosses:    primary.Losses,
			CombinedStreak:    int64(primary.CheckinStreak),
		}
		return nil
	})
	if txErr != nil {
		return merge.Projection{}, txErr
	}
	if s.notification != nil {
		s.notification.Dispatch(ctx, primaryID, notificationdomain.KindMerge, "a linked account was merged into this one")
	}
	return projection, nil
}
