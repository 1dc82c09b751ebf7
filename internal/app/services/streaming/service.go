// Package streaming implements the economy-mode gate service wrapper around
// the tracked live session (§4.13).
package streaming

import (
	"context"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// Service tracks the single live-stream session and enforces the
// channel-points-only gate on free commands (§4.13).
type Service struct {
	store     storage.Store
	clock     clock.Clock
	channelID string
}

// New constructs a Service scoped to a single tracked channel.
func New(store storage.Store, clk clock.Clock, channelID string) *Service {
	return &Service{store: store, clock: clk, channelID: channelID}
}

// StartSession marks the channel live.
func (s *Service) StartSession(ctx context.Context) (streaming.Session, error) {
	session, err := s.store.UpsertSession(ctx, streaming.Session{
		PlatformChannelID: s.channelID,
		StartedAt:         s.clock.Now(),
	})
	if err != nil {
		return streaming.Session{}, apperrors.NewInternal("start streaming session", err)
	}
	return session, nil
}

// EndSession marks the channel offline.
func (s *Service) EndSession(ctx context.Context) (streaming.Session, error) {
	session, err := s.store.GetSession(ctx, s.channelID)
	if err != nil {
		return streaming.Session{}, apperrors.NewInternal("load streaming session", err)
	}
	session.EndedAt = s.clock.Now()
	updated, err := s.store.UpsertSession(ctx, session)
	if err != nil {
		return streaming.Session{}, apperrors.NewInternal("end streaming session", err)
	}
	return updated, nil
}

// Current returns the tracked channel's current session state.
func (s *Service) Current(ctx context.Context) (streaming.Session, error) {
	session, err := s.store.GetSession(ctx, s.channelID)
	if err != nil {
		return streaming.Session{}, apperrors.NewInternal("load streaming session", err)
	}
	return session, nil
}

// RequireOrigin enforces the economy-mode gate (§4.13): a command invoked
// through the free (non-channel-point) path MUST fail while the stream is
// live. Ingress paths authenticated as channel-point redemptions pass
// streaming.OriginChannelPoints and always bypass this check.
func (s *Service) RequireOrigin(ctx context.Context, origin streaming.Origin) error {
	session, err := s.store.GetSession(ctx, s.channelID)
	if err != nil {
		return apperrors.NewInternal("load streaming session", err)
	}
	if streaming.RequiresChannelPoints(origin, session) {
		return apperrors.NewPolicy("free commands require channel points while the stream is live").
			WithDetails("code", "STREAM_LIVE_CHANNEL_POINTS_REQUIRED")
	}
	return nil
}
