package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kingpin-stream/economy-core/internal/app/domain/inventory"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
)

// inventoryList implements GET /inventory (§6).
func (h *handler) inventoryList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	items, err := h.deps.Store.ListUserItems(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// inventoryEquip implements POST /inventory/equip/{id} (§6).
func (h *handler) inventoryEquip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	invID := chi.URLParam(r, "id")
	if invID == "" {
		writeValidationError(w, "id", "item id is required")
		return
	}
	var item inventory.Item
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		i, err := h.deps.Inventory.EquipItem(ctx, tx, userID, invID)
		item = i
		return err
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "item": item})
}

// inventoryUnequip implements POST /inventory/unequip/{slot} (§6).
func (h *handler) inventoryUnequip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	slot := chi.URLParam(r, "slot")
	if slot == "" {
		writeValidationError(w, "slot", "slot is required")
		return
	}
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		return h.deps.Inventory.UnequipSlot(ctx, tx, userID, inventory.Slot(slot))
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// inventorySell implements POST /inventory/sell/{id} (§6).
func (h *handler) inventorySell(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	invID := chi.URLParam(r, "id")
	if invID == "" {
		writeValidationError(w, "id", "item id is required")
		return
	}
	var price int64
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		p, err := h.deps.Inventory.SellItem(ctx, tx, userID, invID)
		price = p
		return err
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "sell_price": price})
}

// escrowClaim implements POST /escrow/claim/{id} (§6).
func (h *handler) escrowClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorised(w)
		return
	}
	invID := chi.URLParam(r, "id")
	if invID == "" {
		writeValidationError(w, "id", "item id is required")
		return
	}
	var item inventory.Item
	err := h.deps.Store.WithTx(r.Context(), func(ctx context.Context, tx storage.Store) error {
		i, err := h.deps.Inventory.ClaimFromEscrow(ctx, tx, userID, invID)
		item = i
		return err
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "item": item})
}
