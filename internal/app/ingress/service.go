package ingress

import (
	"context"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	notificationdomain "github.com/kingpin-stream/economy-core/internal/app/domain/notification"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
	"github.com/kingpin-stream/economy-core/internal/app/metrics"
	consumablesvc "github.com/kingpin-stream/economy-core/internal/app/services/consumable"
	economysvc "github.com/kingpin-stream/economy-core/internal/app/services/economy"
	gamblingsvc "github.com/kingpin-stream/economy-core/internal/app/services/gambling"
	notificationsvc "github.com/kingpin-stream/economy-core/internal/app/services/notification"
	streamingsvc "github.com/kingpin-stream/economy-core/internal/app/services/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// Service maps authenticated platform events onto core commands (§4.14).
type Service struct {
	store        storage.Store
	cfg          config.EconomyConfig
	economy      *economysvc.Service
	gambling     *gamblingsvc.Service
	consumable   *consumablesvc.Service
	streaming    *streamingsvc.Service
	notification *notificationsvc.Service
	throttle     *Throttle
}

// New constructs a Service. throttle may be nil to disable ingress-edge
// rate limiting (a Throttle built with a non-positive rate also disables
// it, so callers can pass NewThrottle(0, 0) interchangeably).
func New(store storage.Store, cfg config.EconomyConfig, economy *economysvc.Service, gambling *gamblingsvc.Service, consumable *consumablesvc.Service, streaming *streamingsvc.Service, notification *notificationsvc.Service, throttle *Throttle) *Service {
	return &Service{store: store, cfg: cfg, economy: economy, gambling: gambling, consumable: consumable, streaming: streaming, notification: notification, throttle: throttle}
}

// resolveUser maps a platform identifier to a user row, auto-provisioning a
// new account on first contact (channel webhooks are the only ingress path
// that creates users; command-API callers always act on an existing id).
func (s *Service) resolveUser(ctx context.Context, platform Platform, platformID string) (player.User, error) {
	u, err := s.store.GetUserByPlatformID(ctx, string(platform), platformID)
	if err == nil {
		return u, nil
	}
	fresh := player.User{Level: 1}
	switch platform {
	case PlatformKick:
		fresh.Kick = platformID
	case PlatformTwitch:
		fresh.Twitch = platformID
	case PlatformDiscord:
		fresh.Discord = platformID
	default:
		return player.User{}, apperrors.NewValidation("platform", "unrecognized platform")
	}
	created, cerr := s.store.CreateUser(ctx, fresh)
	if cerr != nil {
		return player.User{}, apperrors.NewInternal("auto-provision user", cerr)
	}
	return created, nil
}

// Dispatch maps a parsed platform event onto a core command (§4.14).
// Only the per-user throttle runs ahead of idempotence; after it, a retried
// (source, source_event_id) pair short-circuits to a success envelope
// without re-applying effects. Malformed
// payloads fail before any mutation; resolveUser and the economy-mode gate
// both run ahead of the command itself.
func (s *Service) Dispatch(ctx context.Context, ev Event) (Result, error) {
	if ev.SourceEventID == "" {
		return Result{}, apperrors.NewValidation("source_event_id", "required for idempotence")
	}
	if s.throttle != nil {
		if err := s.throttle.Check(string(ev.Platform) + ":" + ev.UserPlatformID); err != nil {
			return Result{}, err
		}
	}
	firstSeen, err := s.store.MarkProcessed(ctx, string(ev.Platform), ev.SourceEventID)
	if err != nil {
		return Result{}, apperrors.NewInternal("mark event processed", err)
	}
	if !firstSeen {
		return Result{Success: true, AlreadyProcessed: true}, nil
	}

	user, err := s.resolveUser(ctx, ev.Platform, ev.UserPlatformID)
	if err != nil {
		return Result{}, err
	}
	if user.IsMerged() {
		return Result{}, apperrors.NewNotFound("user", user.ID)
	}
	if user.Banned {
		return Result{}, apperrors.NewAuthz("user is banned")
	}

	if err := s.streaming.RequireOrigin(ctx, ev.Origin); err != nil {
		return Result{}, err
	}

	tierMultiplier := formula.TierMultiplier(user.Tier())

	switch ev.Command {
	case CommandPlay:
		result, err := s.economy.Play(ctx, user.ID)
		if err != nil {
			return Result{}, err
		}
		metrics.RecordPlay(outcomeLabel(result.Success))
		if result.CrateAwarded {
			s.notification.Dispatch(ctx, user.ID, notificationdomain.KindCrateDrop, "you found a "+result.CrateTier+" crate")
		}
		if result.PromotedTier != "" && result.LeveledUp {
			s.notification.Dispatch(ctx, user.ID, notificationdomain.KindTierPromotion, "you reached tier "+string(result.PromotedTier))
		}
		return Result{Success: true, Data: map[string]interface{}{
			"success":       result.Success,
			"wealth_earned": result.WealthEarned,
			"xp_earned":     result.XPEarned,
			"event_name":    result.EventName,
			"busted":        result.Busted,
			"crate_awarded": result.CrateAwarded,
			"leveled_up":    result.LeveledUp,
			"new_level":     result.NewLevel,
			"promoted_tier": result.PromotedTier,
		}}, nil

	case CommandRob:
		target, terr := s.store.GetUserByPlatformID(ctx, string(ev.Platform), ev.TargetUsername)
		if terr != nil {
			return Result{}, apperrors.NewNotFound("user", ev.TargetUsername)
		}
		result, err := s.economy.Rob(ctx, user.ID, target.ID)
		if err != nil {
			return Result{}, err
		}
		metrics.RecordRob(outcomeLabel(result.Success))
		if result.AttackerJailed {
			s.notification.Dispatch(ctx, user.ID, notificationdomain.KindJailed, "you were caught and sent to jail")
		}
		return Result{Success: true, Data: map[string]interface{}{
			"success":         result.Success,
			"amount_stolen":   result.StolenWealth,
			"item_stolen":     result.ItemStolen,
			"attacker_jailed": result.AttackerJailed,
		}}, nil

	case CommandBail:
		cost, newWealth, err := s.economy.PayBail(ctx, user.ID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{
			"bail_cost": cost, "new_wealth": newWealth,
		}}, nil

	case CommandSlots:
		randomJackpotChance := s.cfg.RandomJackpotChanceBase * tierMultiplier
		result, err := s.gambling.Spin(ctx, user.ID, ev.Wager, tierMultiplier, randomJackpotChance)
		if err != nil {
			return Result{}, err
		}
		metrics.RecordGamblingRound("slots", ev.Wager, ev.Wager+result.Net)
		return Result{Success: true, Data: map[string]interface{}{
			"net": result.Net, "reels": result.Reels,
		}}, nil

	case CommandBlackjackStart:
		session, err := s.gambling.StartBlackjack(ctx, user.ID, ev.Wager, tierMultiplier)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: sessionData(session)}, nil

	case CommandBlackjackHit:
		session, err := s.gambling.Hit(ctx, ev.SessionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: sessionData(session)}, nil

	case CommandBlackjackStand:
		session, err := s.gambling.Stand(ctx, ev.SessionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: sessionData(session)}, nil

	case CommandBlackjackDouble:
		session, err := s.gambling.Double(ctx, ev.SessionID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: sessionData(session)}, nil

	case CommandCoinFlipCreate:
		challenge, err := s.gambling.CreateCoinFlip(ctx, user.ID, ev.Wager, ev.CoinFlipCall, tierMultiplier)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{"challenge_id": challenge.ID}}, nil

	case CommandCoinFlipAccept:
		challenge, err := s.gambling.AcceptCoinFlip(ctx, user.ID, ev.ChallengeID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{
			"winner_id": challenge.WinnerID,
		}}, nil

	case CommandLotteryTicket:
		ticket, err := s.gambling.BuyTicket(ctx, user.ID, ev.DrawID, ev.LotteryNumbers)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{"ticket_id": ticket.ID}}, nil

	case CommandConsumableBuy:
		_, qty, err := s.consumable.Purchase(ctx, user.ID, ev.ConsumableID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{"quantity": qty}}, nil

	case CommandConsumableUse:
		_, qty, err := s.consumable.Use(ctx, user.ID, ev.ConsumableID)
		if err != nil {
			return Result{}, err
		}
		return Result{Success: true, Data: map[string]interface{}{"remaining": qty}}, nil

	default:
		return Result{}, apperrors.NewValidation("command", "unrecognized command")
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func sessionData(session gambling.BlackjackSession) map[string]interface{} {
	return map[string]interface{}{
		"session_id":   session.ID,
		"status":       session.Status,
		"player_cards": session.PlayerCards,
		"dealer_cards": session.DealerCards,
		"payout":       session.Payout,
	}
}
