package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kingpin-stream/economy-core/internal/app/domain/mission"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// missionsList implements GET /missions (§6); it ensures both periods'
// assignments exist before returning them (§4.15 "assigned lazily on first
// touch"). This handler is the only caller of EnsureAssigned; the ingress
// path does not assign missions.
func (h *handler) missionsList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	tierMultiplier, _, err := h.tierMultiplier(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	var daily, weekly []mission.Assignment
	txErr := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		d, derr := h.deps.Mission.EnsureAssigned(ctx, tx, userID, mission.Daily, tierMultiplier)
		if derr != nil {
			return derr
		}
		w, werr := h.deps.Mission.EnsureAssigned(ctx, tx, userID, mission.Weekly, tierMultiplier)
		if werr != nil {
			return werr
		}
		daily, weekly = d, w
		return nil
	})
	if txErr != nil {
		writeServiceError(w, h.log, txErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"daily":  daily,
		"weekly": weekly,
	})
}

// missionsClaim implements POST /missions/claim/{period} (§6).
func (h *handler) missionsClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	period := chi.URLParam(r, "period")
	var t mission.Type
	switch period {
	case "daily":
		t = mission.Daily
	case "weekly":
		t = mission.Weekly
	default:
		writeValidationError(w, "period", "period must be 'daily' or 'weekly'")
		return
	}
	wealth, xp, err := h.deps.Mission.Claim(r.Context(), userID, t)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"awarded_wealth": wealth,
		"awarded_xp":     xp,
	})
}
