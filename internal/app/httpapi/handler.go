// Package httpapi exposes the economy core's command API, webhook ingress,
// and admin surface over HTTP (§6 External Interfaces).
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kingpin-stream/economy-core/internal/app/ingress"
	businesssvc "github.com/kingpin-stream/economy-core/internal/app/services/business"
	consumablesvc "github.com/kingpin-stream/economy-core/internal/app/services/consumable"
	economysvc "github.com/kingpin-stream/economy-core/internal/app/services/economy"
	gamblingsvc "github.com/kingpin-stream/economy-core/internal/app/services/gambling"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	missionsvc "github.com/kingpin-stream/economy-core/internal/app/services/mission"
	shopsvc "github.com/kingpin-stream/economy-core/internal/app/services/shop"
	streamingsvc "github.com/kingpin-stream/economy-core/internal/app/services/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
	"github.com/kingpin-stream/economy-core/pkg/logger"
	"github.com/kingpin-stream/economy-core/pkg/version"
)

// Deps bundles every service the command API, webhook ingress, and admin
// surface call into.
type Deps struct {
	Store      storage.Store
	Cfg        config.EconomyConfig
	Economy    *economysvc.Service
	Gambling   *gamblingsvc.Service
	Shop       *shopsvc.Service
	Consumable *consumablesvc.Service
	Inventory  *inventorysvc.Service
	Mission    *missionsvc.Service
	Business   *businesssvc.Service
	Streaming  *streamingsvc.Service
	Ingress    *ingress.Service

	// WebhookVerifier checks each webhook delivery's HMAC signature before
	// its body is parsed. Nil disables verification (local/dev).
	WebhookVerifier *ingress.SignatureVerifier
}

// handler bundles HTTP endpoints for the command API.
type handler struct {
	deps Deps
	log  *logger.Logger
}

// NewHandler returns the chi router exposing the player-facing command API
// and the webhook ingress endpoint (§6 "Command API", "Webhook ingress").
// The admin surface is mounted separately on its own gorilla/mux router
// (see NewAdminHandler) per the teacher's dual-mux layout.
func NewHandler(deps Deps, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{deps: deps, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)

	r.Post("/play", h.play)
	r.Post("/rob", h.rob)
	r.Post("/bail", h.bail)

	r.Get("/gambling/jackpot", h.jackpot)
	r.Post("/slots", h.slots)
	r.Post("/bj/start", h.bjStart)
	r.Post("/bj/hit", h.bjHit)
	r.Post("/bj/stand", h.bjStand)
	r.Post("/bj/double", h.bjDouble)
	r.Post("/coinflip/create", h.coinFlipCreate)
	r.Post("/coinflip/accept", h.coinFlipAccept)
	r.Post("/coinflip/cancel", h.coinFlipCancel)
	r.Post("/lottery/ticket", h.lotteryTicket)

	r.Get("/shop", h.shopCurrent)
	r.Post("/shop/reroll", h.shopReroll)
	r.Post("/shop/purchase/{id}", h.shopPurchase)

	r.Get("/consumables/catalog", h.consumableCatalog)
	r.Post("/consumables/buy/{id}", h.consumableBuy)
	r.Post("/consumables/use/{id}", h.consumableUse)

	r.Get("/inventory", h.inventoryList)
	r.Post("/inventory/equip/{id}", h.inventoryEquip)
	r.Post("/inventory/unequip/{slot}", h.inventoryUnequip)
	r.Post("/inventory/sell/{id}", h.inventorySell)
	r.Post("/escrow/claim/{id}", h.escrowClaim)

	r.Get("/missions", h.missionsList)
	r.Post("/missions/claim/{period}", h.missionsClaim)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    version.Version,
		"user_agent": version.UserAgent(),
	})
}

// NewWebhookHandler returns the chi router carrying channel-point redemption
// ingress from each streaming platform (§6 "Webhook ingress (authenticated)").
// It is mounted and authenticated separately from the player command API
// (bot shared-secret, not a player JWT) since the caller is the platform
// bot/relay.
func NewWebhookHandler(deps Deps, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi-webhook")
	}
	h := &handler{deps: deps, log: log}
	r := chi.NewRouter()
	r.Post("/{platform}", h.webhook)
	return r
}
