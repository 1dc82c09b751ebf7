package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kingpin-stream/economy-core/internal/app/domain/shop"
)

func shopRotationResponse(rot shop.Rotation) map[string]interface{} {
	return map[string]interface{}{
		"offers":     rot.Offers,
		"rolled_at":  rot.RolledAt,
		"expires_at": rot.ExpiresAt,
	}
}

// shopCurrent implements GET /shop (§6).
func (h *handler) shopCurrent(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	rot, err := h.deps.Shop.Current(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, shopRotationResponse(rot))
}

// shopReroll implements POST /shop/reroll (§6).
func (h *handler) shopReroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	rot, err := h.deps.Shop.Reroll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, shopRotationResponse(rot))
}

// shopPurchase implements POST /shop/purchase/{id} (§6).
func (h *handler) shopPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	itemDefID := chi.URLParam(r, "id")
	if itemDefID == "" {
		writeValidationError(w, "id", "item id is required")
		return
	}
	item, err := h.deps.Shop.Purchase(r.Context(), userID, itemDefID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"item":    item,
	})
}
