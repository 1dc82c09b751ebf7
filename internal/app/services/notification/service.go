// Package notification records post-commit delivery intents and purges
// them on a retention schedule (§5, §6 "user_notifications").
package notification

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/notification"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// Service dispatches and retains notification intents. Dispatch is
// fire-and-forget by design (§5 "if delivery fails, the game state is not
// rolled back"): callers invoke it after their own transaction has
// committed, and a Dispatch failure is logged rather than propagated.
type Service struct {
	store storage.Store
	clock clock.Clock
	log   *logger.Logger
}

// New constructs a Service.
func New(store storage.Store, clk clock.Clock, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notification")
	}
	return &Service{store: store, clock: clk, log: log}
}

// Dispatch records a delivery intent for userID. Errors are logged, not
// returned, so a notification-store outage never blocks the command that
// triggered it.
func (s *Service) Dispatch(ctx context.Context, userID string, kind notification.Kind, message string) {
	_, err := s.store.CreateNotification(ctx, notification.Notification{
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("dispatch notification failed")
	}
}

// Unread returns a user's unread notifications, oldest first.
func (s *Service) Unread(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	out, err := s.store.ListUnreadNotifications(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewInternal("list unread notifications", err)
	}
	return out, nil
}

// MarkRead acknowledges a single notification.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return apperrors.NewInternal("mark notification read", err)
	}
	return nil
}

// Purge deletes notifications older than retention (§6 Scheduler
// "notification retention").
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int, error) {
	purged, err := s.store.PurgeNotificationsBefore(ctx, s.clock.Now().Add(-retention))
	if err != nil {
		return 0, apperrors.NewInternal("purge notifications", err)
	}
	return purged, nil
}
