package httpapi

import (
	"context"
	"net/http"

	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
)

// jackpot implements GET /gambling/jackpot, a read-only display endpoint
// served cache-aside through gambling.Service.JackpotStatus (§5 "Shared
// resources").
func (h *handler) jackpot(w http.ResponseWriter, r *http.Request) {
	pool, err := h.deps.Gambling.JackpotStatus(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_pool":    pool.CurrentPool,
		"last_winner_id":  pool.LastWinnerID,
		"last_win_amount": pool.LastWinAmount,
	})
}

// slots implements POST /slots {wager} (§4.11 Slots, §6).
func (h *handler) slots(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		Wager int64 `json:"wager"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Wager <= 0 {
		writeValidationError(w, "wager", "wager must be a positive integer")
		return
	}
	tierMultiplier, _, err := h.tierMultiplier(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	jackpotChance := h.deps.Cfg.RandomJackpotChanceBase * tierMultiplier
	result, err := h.deps.Gambling.Spin(r.Context(), userID, payload.Wager, tierMultiplier, jackpotChance)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"net":     result.Net,
		"reels":   result.Reels,
		"payout":  result.Outcome.Payout,
		"outcome": result.Outcome.Outcome,
	})
}

func blackjackResponse(s gambling.BlackjackSession) map[string]interface{} {
	return map[string]interface{}{
		"success":      true,
		"session_id":   s.ID,
		"player_cards": s.PlayerCards,
		"dealer_cards": s.DealerCards,
		"status":       string(s.Status),
		"doubled":      s.Doubled,
		"payout":       s.Payout,
		"terminal":     s.IsTerminal(),
	}
}

// bjStart implements POST /bj/start {wager} (§4.11 Blackjack).
func (h *handler) bjStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		Wager int64 `json:"wager"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Wager <= 0 {
		writeValidationError(w, "wager", "wager must be a positive integer")
		return
	}
	tierMultiplier, _, err := h.tierMultiplier(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	session, err := h.deps.Gambling.StartBlackjack(r.Context(), userID, payload.Wager, tierMultiplier)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, blackjackResponse(session))
}

// blackjackSessionPayload carries the session the player is acting on; a
// player may only have one open blackjack session at a time (§4.11), but the
// session id is still required so a stale client can't mutate a session it no
// longer has in view.
type blackjackSessionPayload struct {
	SessionID string `json:"session_id"`
}

func (h *handler) bjHit(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.deps.Gambling.Hit)
}

func (h *handler) bjStand(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.deps.Gambling.Stand)
}

func (h *handler) bjDouble(w http.ResponseWriter, r *http.Request) {
	h.blackjackAction(w, r, h.deps.Gambling.Double)
}

func (h *handler) blackjackAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, sessionID string) (gambling.BlackjackSession, error)) {
	if _, ok := userIDFromContext(r.Context()); !ok {
		unauthorised(w)
		return
	}
	var payload blackjackSessionPayload
	if err := decodeJSON(r.Body, &payload); err != nil || payload.SessionID == "" {
		writeValidationError(w, "session_id", "session_id is required")
		return
	}
	session, err := action(r.Context(), payload.SessionID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, blackjackResponse(session))
}

func coinFlipResponse(c gambling.CoinFlipChallenge) map[string]interface{} {
	resp := map[string]interface{}{
		"success":         true,
		"challenge_id":    c.ID,
		"challenger_id":   c.ChallengerID,
		"wager":           c.WagerAmount,
		"challenger_call": string(c.ChallengerCall),
		"status":          string(c.Status),
	}
	if c.AcceptorID != "" {
		resp["acceptor_id"] = c.AcceptorID
	}
	if c.WinnerID != "" {
		resp["winner_id"] = c.WinnerID
	}
	return resp
}

// coinFlipCreate implements POST /coinflip/create {wager, call}.
func (h *handler) coinFlipCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		Wager int64  `json:"wager"`
		Call  string `json:"call"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Wager <= 0 {
		writeValidationError(w, "wager", "wager must be a positive integer")
		return
	}
	tierMultiplier, _, err := h.tierMultiplier(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	challenge, err := h.deps.Gambling.CreateCoinFlip(r.Context(), userID, payload.Wager, gambling.CoinFlipCall(payload.Call), tierMultiplier)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, coinFlipResponse(challenge))
}

func (h *handler) coinFlipAccept(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		ChallengeID string `json:"challenge_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.ChallengeID == "" {
		writeValidationError(w, "challenge_id", "challenge_id is required")
		return
	}
	challenge, err := h.deps.Gambling.AcceptCoinFlip(r.Context(), userID, payload.ChallengeID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, coinFlipResponse(challenge))
}

func (h *handler) coinFlipCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		ChallengeID string `json:"challenge_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.ChallengeID == "" {
		writeValidationError(w, "challenge_id", "challenge_id is required")
		return
	}
	if err := h.deps.Gambling.CancelCoinFlip(r.Context(), userID, payload.ChallengeID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// lotteryTicket implements POST /lottery/ticket {draw_id, numbers}.
func (h *handler) lotteryTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		DrawID  string `json:"draw_id"`
		Numbers []int  `json:"numbers"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.DrawID == "" {
		writeValidationError(w, "draw_id", "draw_id is required")
		return
	}
	ticket, err := h.deps.Gambling.BuyTicket(r.Context(), userID, payload.DrawID, payload.Numbers)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"ticket_id": ticket.ID,
		"numbers":   ticket.Numbers,
	})
}
