// Package cooldown implements the per-user, per-command expiring lock
// layer, including jail as a designated cooldown row (§4.4).
package cooldown

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// Status reports a cooldown's activity for the UI-hint query.
type Status struct {
	Active           bool
	ExpiresAt        time.Time
	RemainingSeconds int64
}

// Service implements the Cooldown/Jail operations (§4.4).
type Service struct {
	store storage.Store
	clock clock.Clock
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock) *Service {
	return &Service{store: store, clock: clk}
}

// HasCooldown is the advisory "can X" query (§5 pre-check vs binding check).
func (s *Service) HasCooldown(ctx context.Context, tx storage.Store, userID string, cmd cooldown.CommandType, target string) (Status, error) {
	if tx == nil {
		tx = s.store
	}
	c, err := tx.GetCooldown(ctx, userID, cmd)
	if err != nil {
		return Status{}, apperrors.NewInternal("load cooldown", err)
	}
	if c.TargetIdentifier != target {
		return Status{}, nil
	}
	return s.statusOf(c), nil
}

func (s *Service) statusOf(c cooldown.Cooldown) Status {
	now := s.clock.Now()
	if c.ExpiresAt.IsZero() || !c.ExpiresAt.After(now) {
		return Status{}
	}
	return Status{Active: true, ExpiresAt: c.ExpiresAt, RemainingSeconds: int64(c.ExpiresAt.Sub(now).Seconds())}
}

// SetCooldown upserts an atomic expiry for (user, cmd, target). Must be
// called inside the caller's enclosing transaction.
func (s *Service) SetCooldown(ctx context.Context, tx storage.Store, userID string, cmd cooldown.CommandType, dur time.Duration, target string) error {
	_, err := tx.UpsertCooldown(ctx, cooldown.Cooldown{
		UserID:           userID,
		CommandType:      cmd,
		TargetIdentifier: target,
		ExpiresAt:        s.clock.Now().Add(dur),
	})
	if err != nil {
		return apperrors.NewInternal("set cooldown", err)
	}
	return nil
}

// ClearCooldown deletes the row; idempotent.
func (s *Service) ClearCooldown(ctx context.Context, tx storage.Store, userID string, cmd cooldown.CommandType) error {
	if err := tx.ClearCooldown(ctx, userID, cmd); err != nil {
		return apperrors.NewInternal("clear cooldown", err)
	}
	return nil
}

// JailStatus is HasCooldown(user, "jail", "").
func (s *Service) JailStatus(ctx context.Context, tx storage.Store, userID string) (Status, error) {
	return s.HasCooldown(ctx, tx, userID, cooldown.Jail, "")
}

// JailUser jails a user for the given duration (bust/failed-rob, §4.15).
func (s *Service) JailUser(ctx context.Context, tx storage.Store, userID string, duration time.Duration) error {
	jailedUntil := s.clock.Now().Add(duration)
	_, err := tx.UpsertCooldown(ctx, cooldown.Cooldown{
		UserID:       userID,
		CommandType:  cooldown.Jail,
		ExpiresAt:    jailedUntil,
		JailedUntil:  &jailedUntil,
	})
	if err != nil {
		return apperrors.NewInternal("jail user", err)
	}
	return nil
}

// PayBail clears an active jail in exchange for the bail cost (§4.4).
func (s *Service) PayBail(ctx context.Context, userID string, bailCost func(wealth int64) int64) (cost int64, newWealth int64, err error) {
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		status, serr := s.JailStatus(ctx, tx, userID)
		if serr != nil {
			return serr
		}
		if !status.Active {
			return apperrors.NewPolicy("you are not in jail")
		}
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		cost = bailCost(user.Wealth)
		user.Wealth -= cost
		if user.Wealth < 0 {
			user.Wealth = 0
		}
		if _, uerr := tx.UpdateUser(ctx, user); uerr != nil {
			return apperrors.NewInternal("debit bail cost", uerr)
		}
		if cerr := s.ClearCooldown(ctx, tx, userID, cooldown.Jail); cerr != nil {
			return cerr
		}
		if _, eerr := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindBail,
			WealthDelta: -cost,
			CreatedAt:   s.clock.Now(),
		}); eerr != nil {
			return apperrors.NewInternal("append bail event", eerr)
		}
		newWealth = user.Wealth
		return nil
	})
	if txErr != nil {
		return 0, 0, txErr
	}
	return cost, newWealth, nil
}

// SweepExpired garbage-collects jail rows with expires_at < Now(). Other
// cooldown rows are not swept here; they lazily expire via HasCooldown's
// active check.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ListExpiredJail(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperrors.NewInternal("list expired jail", err)
	}
	cleared := 0
	for _, c := range expired {
		if err := s.store.ClearCooldown(ctx, c.UserID, c.CommandType); err != nil {
			continue
		}
		cleared++
	}
	return cleared, nil
}
