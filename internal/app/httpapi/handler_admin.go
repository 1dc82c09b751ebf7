package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/core/service"
	"github.com/kingpin-stream/economy-core/internal/app/domain/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// adminReportLimit clamps the optional ?limit= query param backing the
// economy-wide report endpoints with service.ClampLimit; this is that
// helper's only caller. Reports
// default to scanning the whole player base (100000) rather than the
// small page size list endpoints default to, since "totals" and
// "distribution" are meaningless over a partial page.
func adminReportLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return service.ClampLimit(n, 100000, 100000)
}

type adminHandler struct {
	deps Deps
	log  *logger.Logger
}

// NewAdminHandler returns the gorilla/mux router backing the operator-facing
// admin surface (§6 "Admin surface"), kept on its own router distinct from
// the player command API per the teacher's dual-mux layout. Role gating
// ("role" == "admin") is enforced by wrapWithAuth on the shared /admin
// prefix before a request ever reaches this mux.
func NewAdminHandler(deps Deps, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi-admin")
	}
	h := &adminHandler{deps: deps, log: log}

	r := mux.NewRouter().PathPrefix("/admin").Subrouter()
	r.HandleFunc("/economy/totals", h.economyTotals).Methods("GET")
	r.HandleFunc("/economy/distribution", h.economyDistribution).Methods("GET")
	r.HandleFunc("/gambling/pnl", h.gamblingPnL).Methods("GET")
	r.HandleFunc("/users/{id}/adjust", h.adjustUser).Methods("POST")
	r.HandleFunc("/users/{id}/ban", h.banUser).Methods("POST")
	r.HandleFunc("/users/{id}/unban", h.unbanUser).Methods("POST")
	r.HandleFunc("/users/{id}/cooldowns/{command}", h.clearCooldown).Methods("DELETE")
	r.HandleFunc("/gambling/jackpot/reset", h.resetJackpot).Methods("POST")
	r.HandleFunc("/gambling/lottery/{draw_type}/force-draw", h.forceDraw).Methods("POST")
	return r
}

// economyTotals implements GET /admin/economy/totals (§6 "read aggregates
// (economy totals...)"). Users are paged through store.ListUsers; this is a
// small-scale admin report, not a hot path, so no materialized rollup table
// is warranted.
func (h *adminHandler) economyTotals(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Store.ListUsers(r.Context(), adminReportLimit(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	var totalWealth, totalXP, totalTokens, totalBonds int64
	for _, u := range users {
		totalWealth += u.Wealth
		totalXP += u.XP
		totalTokens += u.Tokens
		totalBonds += u.Bonds
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_count": len(users),
		"total_wealth": totalWealth,
		"total_xp":     totalXP,
		"total_tokens": totalTokens,
		"total_bonds":  totalBonds,
	})
}

// economyDistribution implements GET /admin/economy/distribution (§6
// "distribution buckets"), bucketing players by tier.
func (h *adminHandler) economyDistribution(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Store.ListUsers(r.Context(), adminReportLimit(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	buckets := map[string]int{}
	for _, u := range users {
		buckets[string(u.Tier())]++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tier_buckets": buckets})
}

// gamblingPnL implements GET /admin/gambling/pnl (§6 "house P&L for
// gambling"), summing Session.Net across every game's stats row the house
// has accumulated.
func (h *adminHandler) gamblingPnL(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Store.ListUsers(r.Context(), adminReportLimit(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	var houseNet int64
	for _, game := range []gambling.Game{gambling.GameSlots, gambling.GameBlackjack, gambling.GameCoinFlip, gambling.GameLottery} {
		for _, u := range users {
			stats, serr := h.deps.Store.GetStats(r.Context(), u.ID, game)
			if serr != nil {
				continue
			}
			houseNet += stats.TotalWagered - stats.TotalWon
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"house_net": houseNet})
}

// adjustUser implements POST /admin/users/{id}/adjust {wealth_delta,
// xp_delta, reason} (§6 "write operations for wealth/XP adjustments (always
// producing a game_event)").
func (h *adminHandler) adjustUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	var payload struct {
		WealthDelta int64  `json:"wealth_delta"`
		XPDelta     int64  `json:"xp_delta"`
		Reason      string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeValidationError(w, "body", "malformed adjustment payload")
		return
	}
	var updated player.User
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		u, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return uerr
		}
		u.Wealth += payload.WealthDelta
		u.XP += payload.XPDelta
		u.RecomputeLevel()
		saved, serr := tx.UpdateUser(ctx, u)
		if serr != nil {
			return serr
		}
		updated = saved
		_, eerr := tx.AppendEvent(ctx, gameevent.Event{
			UserID:      userID,
			Kind:        gameevent.KindAdminAdjust,
			WealthDelta: payload.WealthDelta,
			XPDelta:     payload.XPDelta,
			Details:     map[string]interface{}{"reason": payload.Reason},
		})
		return eerr
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": updated})
}

func (h *adminHandler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	userID := mux.Vars(r)["id"]
	var updated player.User
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		u, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return uerr
		}
		u.Banned = banned
		saved, serr := tx.UpdateUser(ctx, u)
		updated = saved
		return serr
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": updated})
}

// banUser implements POST /admin/users/{id}/ban (§6 "player ban/unban").
func (h *adminHandler) banUser(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// unbanUser implements POST /admin/users/{id}/unban (§6 "player ban/unban").
func (h *adminHandler) unbanUser(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

// clearCooldown implements DELETE /admin/users/{id}/cooldowns/{command}
// (§6 "cooldown clearance").
func (h *adminHandler) clearCooldown(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, cmd := vars["id"], vars["command"]
	if err := h.deps.Store.ClearCooldown(r.Context(), userID, cooldown.CommandType(cmd)); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// resetJackpot implements POST /admin/gambling/jackpot/reset {reason}
// (§6 "jackpot reset with reason").
func (h *adminHandler) resetJackpot(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Reason == "" {
		writeValidationError(w, "reason", "reason is required")
		return
	}
	pool, err := h.deps.Store.GetJackpotPool(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	next := pool
	next.CurrentPool = 0
	ok, err := h.deps.Store.CompareAndSwapJackpotPool(r.Context(), pool, next)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, errorEnvelope{Error: errorDetail{Code: apperrors.Conflict, Message: "jackpot pool changed concurrently, retry"}})
		return
	}
	h.log.Infof("jackpot reset by admin: %s", payload.Reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// forceDraw implements POST /admin/gambling/lottery/{draw_type}/force-draw
// (§6 "lottery force-draw").
func (h *adminHandler) forceDraw(w http.ResponseWriter, r *http.Request) {
	drawType := mux.Vars(r)["draw_type"]
	open, err := h.deps.Store.GetOpenLotteryDraw(r.Context(), drawType)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if open == nil {
		writeServiceError(w, h.log, apperrors.NewNotFound("lottery draw", drawType))
		return
	}
	result, err := h.deps.Gambling.ExecuteDraw(r.Context(), open.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if _, err := h.deps.Gambling.OpenNewDraw(r.Context(), drawType, time.Now()); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "draw": result})
}
