package httpapi

import "net/http"

// play implements POST /play (§6 "POST /play").
func (h *handler) play(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	result, err := h.deps.Economy.Play(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	resp := map[string]interface{}{
		"success":       result.Success,
		"wealth_earned": result.WealthEarned,
		"xp_earned":     result.XPEarned,
		"event_name":    result.EventName,
		"busted":        result.Busted,
	}
	if result.CrateAwarded {
		resp["crate_awarded"] = result.CrateTier
	}
	if result.LeveledUp {
		resp["leveled_up"] = true
		resp["new_level"] = result.NewLevel
	}
	if result.PromotedTier != "" {
		resp["promoted_tier"] = string(result.PromotedTier)
	}
	writeJSON(w, http.StatusOK, resp)
}

// rob implements POST /rob {target} (§6 "POST /rob {target}"). target is the
// target player's economy user id; resolving platform usernames to user ids
// is the webhook ingress path's job (see handler_webhook.go), not this
// directly-authenticated command endpoint's.
func (h *handler) rob(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	var payload struct {
		Target string `json:"target"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil || payload.Target == "" {
		writeValidationError(w, "target", "target is required")
		return
	}
	result, err := h.deps.Economy.Rob(r.Context(), userID, payload.Target)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	resp := map[string]interface{}{
		"success":       result.Success,
		"amount_stolen": result.StolenWealth,
	}
	if result.ItemStolen {
		resp["item_stolen"] = true
	}
	if result.AttackerJailed {
		resp["attacker_jailed"] = true
	}
	if result.DefenderInsurance > 0 {
		resp["defender_insurance"] = result.DefenderInsurance
	}
	writeJSON(w, http.StatusOK, resp)
}

// bail implements POST /bail (§6 "POST /bail").
func (h *handler) bail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	cost, newWealth, err := h.deps.Economy.PayBail(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"bail_cost":  cost,
		"new_wealth": newWealth,
	})
}
