package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/ingress"
)

// webhookValidate is shared across every webhook delivery; validator.Validate
// caches its struct-tag reflection per type, so a single instance is the
// idiomatic way to use the library.
var webhookValidate = validator.New()

// webhookPayload is the wire shape sent by each platform's bot/relay for a
// channel-point redemption or free-path command (§6 "Webhook ingress
// (authenticated)"), after ingress.NormalizeWebhookBody has unwrapped the
// platform's own envelope. Only the fields relevant to Command are read;
// this mirrors ingress.Event's own "command-specific fields" comment.
type webhookPayload struct {
	SourceEventID  string  `json:"source_event_id" validate:"required"`
	Origin         string  `json:"origin" validate:"required,oneof=free channel_points"`
	UserPlatformID string  `json:"user_platform_id" validate:"required"`
	Command        string  `json:"command" validate:"required"`
	TargetUsername string  `json:"target_username"`
	Wager          int64   `json:"wager" validate:"gte=0"`
	SessionID      string  `json:"session_id"`
	CoinFlipCall   string  `json:"coinflip_call"`
	ChallengeID    string  `json:"challenge_id"`
	DrawID         string  `json:"draw_id"`
	LotteryNumbers []int   `json:"lottery_numbers"`
	ConsumableID   string  `json:"consumable_id"`
}

// webhook implements the per-platform ingress endpoint, translating the wire
// payload into an ingress.Event and delegating to ingress.Service.Dispatch.
// Signature verification runs over the raw body before any JSON decoding;
// gjson-based normalization and struct-tag validation run before the
// payload is trusted enough to build an ingress.Event from.
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	platform := ingress.Platform(chi.URLParam(r, "platform"))
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeValidationError(w, "body", "could not read request body")
		return
	}
	if h.deps.WebhookVerifier != nil {
		ok, verr := h.deps.WebhookVerifier.Verify(platform, raw, r.Header.Get("X-Signature"))
		if verr != nil || !ok {
			unauthorised(w)
			return
		}
	}

	normalized := ingress.NormalizeWebhookBody(platform, raw)
	var payload webhookPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		writeValidationError(w, "body", "malformed webhook payload")
		return
	}
	if err := webhookValidate.Struct(payload); err != nil {
		writeValidationError(w, "body", "webhook payload failed validation")
		return
	}
	ev := ingress.Event{
		Platform:       platform,
		SourceEventID:  payload.SourceEventID,
		Origin:         streaming.Origin(payload.Origin),
		UserPlatformID: payload.UserPlatformID,
		Command:        ingress.CommandType(payload.Command),
		TargetUsername: payload.TargetUsername,
		Wager:          payload.Wager,
		SessionID:      payload.SessionID,
		CoinFlipCall:   gambling.CoinFlipCall(payload.CoinFlipCall),
		ChallengeID:    payload.ChallengeID,
		DrawID:         payload.DrawID,
		LotteryNumbers: payload.LotteryNumbers,
		ConsumableID:   payload.ConsumableID,
	}
	result, err := h.deps.Ingress.Dispatch(r.Context(), ev)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if result.AlreadyProcessed {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "already_processed": true})
		return
	}
	writeJSON(w, http.StatusOK, result.Data)
}
