package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// consumableCatalog implements GET /consumables/catalog (§6).
func (h *handler) consumableCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.deps.Consumable.Catalog(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"catalog": catalog})
}

// consumableBuy implements POST /consumables/buy/{id} (§6).
func (h *handler) consumableBuy(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	consumableID := chi.URLParam(r, "id")
	if consumableID == "" {
		writeValidationError(w, "id", "consumable id is required")
		return
	}
	outcome, qty, err := h.deps.Consumable.Purchase(r.Context(), userID, consumableID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"quantity":     qty,
		"outcome":      outcome,
	})
}

// consumableUse implements POST /consumables/use/{id} (§6).
func (h *handler) consumableUse(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	consumableID := chi.URLParam(r, "id")
	if consumableID == "" {
		writeValidationError(w, "id", "consumable id is required")
		return
	}
	outcome, remaining, err := h.deps.Consumable.Use(r.Context(), userID, consumableID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"remaining": remaining,
		"outcome":   outcome,
	})
}
