// Package app wires every domain service, the ingress translator, the HTTP
// API, and the scheduler into one managed Application, mirroring the
// teacher's internal/app/application.go composition root.
package app

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	core "github.com/kingpin-stream/economy-core/internal/app/core/service"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/httpapi"
	"github.com/kingpin-stream/economy-core/internal/app/ingress"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/hotrow"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	"github.com/kingpin-stream/economy-core/internal/app/scheduler"
	buffsvc "github.com/kingpin-stream/economy-core/internal/app/services/buff"
	businesssvc "github.com/kingpin-stream/economy-core/internal/app/services/business"
	consumablesvc "github.com/kingpin-stream/economy-core/internal/app/services/consumable"
	cooldownsvc "github.com/kingpin-stream/economy-core/internal/app/services/cooldown"
	currencysvc "github.com/kingpin-stream/economy-core/internal/app/services/currency"
	economysvc "github.com/kingpin-stream/economy-core/internal/app/services/economy"
	gamblingsvc "github.com/kingpin-stream/economy-core/internal/app/services/gambling"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	mergesvc "github.com/kingpin-stream/economy-core/internal/app/services/merge"
	missionsvc "github.com/kingpin-stream/economy-core/internal/app/services/mission"
	notificationsvc "github.com/kingpin-stream/economy-core/internal/app/services/notification"
	shopsvc "github.com/kingpin-stream/economy-core/internal/app/services/shop"
	streamingsvc "github.com/kingpin-stream/economy-core/internal/app/services/streaming"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/internal/app/storage/memory"
	"github.com/kingpin-stream/economy-core/internal/app/system"
	"github.com/kingpin-stream/economy-core/pkg/config"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// Stores carries the storage.Store implementation the Application is wired
// against. Unlike the teacher, whose Stores struct splits one interface per
// domain (Accounts, Functions, GasBank, ...), the economy core's
// storage.Store is a single interface every domain package already depends
// on directly, so one field is enough; Backing defaults to an in-memory
// store when nil, matching the teacher's applyDefaults fallback for local
// runs and tests.
type Stores struct {
	Backing storage.Store
}

func (s Stores) applyDefaults() storage.Store {
	if s.Backing != nil {
		return s.Backing
	}
	return memory.New()
}

// Application owns every long-lived component of the economy core and
// drives their lifecycle through a system.Manager, mirroring the teacher's
// Application/New/Attach/Start/Stop/Descriptors shape.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store storage.Store

	Cooldown     *cooldownsvc.Service
	Buff         *buffsvc.Service
	Currency     *currencysvc.Service
	Inventory    *inventorysvc.Service
	Economy      *economysvc.Service
	Gambling     *gamblingsvc.Service
	Shop         *shopsvc.Service
	Consumable   *consumablesvc.Service
	Mission      *missionsvc.Service
	Business     *businesssvc.Service
	Streaming    *streamingsvc.Service
	Merge        *mergesvc.Service
	Notification *notificationsvc.Service

	Ingress   *ingress.Service
	HTTPAPI   *httpapi.Service
	Scheduler *scheduler.Scheduler

	descriptors []core.Descriptor
}

// New constructs every domain service in dependency order, then the
// ingress translator, scheduler, and HTTP API on top of them, registering
// each with a fresh system.Manager. Construction order: notification first
// (merge depends on it), then the leaf services (cooldown, buff, currency,
// inventory), then services composed from those leaves (economy, gambling,
// shop, consumable, mission, business), then streaming and merge, and
// finally the three outward-facing components (ingress, scheduler,
// httpapi).
func New(stores Stores, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("economy-core")
	}
	store := stores.applyDefaults()

	clk := clock.System{}
	src := rng.System{}

	notification := notificationsvc.New(store, clk, log)
	cooldown := cooldownsvc.New(store, clk)
	buff := buffsvc.New(store, clk)
	currency := currencysvc.New(store, clk, cfg.Economy)
	inventory := inventorysvc.New(store, clk, cfg.Economy)

	jackpotCache := newJackpotCache(cfg.Cache)

	economy := economysvc.New(store, clk, src, cfg.Economy, cooldown, buff, inventory)
	gambling := gamblingsvc.New(store, clk, src, cfg.Economy, cooldown, jackpotCache)
	shop := shopsvc.New(store, clk, src, inventory)
	consumable := consumablesvc.New(store, clk, buff)
	mission := missionsvc.New(store, clk, src, cfg.Economy, inventory)
	business := businesssvc.New(store, clk, src, cfg.Economy)
	streaming := streamingsvc.New(store, clk, cfg.Streaming.ChannelID)
	merge := mergesvc.New(store, clk, notification)

	throttle := ingress.NewThrottle(cfg.Ingress.RateLimitPerSecond, cfg.Ingress.RateLimitBurst)
	ingressSvc := ingress.New(store, cfg.Economy, economy, gambling, consumable, streaming, notification, throttle)

	schedulerSvc := scheduler.New(scheduler.Dependencies{
		Cooldowns:    cooldown,
		Buffs:        buff,
		Inventory:    inventory,
		Currency:     currency,
		Business:     business,
		Mission:      mission,
		Gambling:     gambling,
		Notification: notification,
	}, cfg.Runtime, cfg.Economy, log)

	validator := httpapi.NewSupabaseJWTValidator(cfg.Auth.SupabaseJWTSecret, cfg.Auth.SupabaseJWTAud)
	httpSvc := httpapi.NewService(httpapi.Deps{
		Store:           store,
		Cfg:             cfg.Economy,
		Economy:         economy,
		Gambling:        gambling,
		Shop:            shop,
		Consumable:      consumable,
		Inventory:       inventory,
		Mission:         mission,
		Business:        business,
		Streaming:       streaming,
		Ingress:         ingressSvc,
		WebhookVerifier: ingress.NewSignatureVerifier(cfg.Auth.WebhookBotSecret),
	}, *cfg, validator, log)

	manager := system.NewManager()
	if err := manager.Register(schedulerSvc); err != nil {
		return nil, err
	}
	if err := manager.Register(httpSvc); err != nil {
		return nil, err
	}

	app := &Application{
		manager:      manager,
		log:          log,
		Store:        store,
		Cooldown:     cooldown,
		Buff:         buff,
		Currency:     currency,
		Inventory:    inventory,
		Economy:      economy,
		Gambling:     gambling,
		Shop:         shop,
		Consumable:   consumable,
		Mission:      mission,
		Business:     business,
		Streaming:    streaming,
		Merge:        merge,
		Notification: notification,
		Ingress:      ingressSvc,
		HTTPAPI:      httpSvc,
		Scheduler:    schedulerSvc,
		descriptors:  manager.Descriptors(),
	}
	return app, nil
}

// Attach registers an additional service with the manager before Start is
// called, mirroring the teacher's Attach used to bolt on optional services.
func (a *Application) Attach(svc system.Service) error {
	if err := a.manager.Register(svc); err != nil {
		return err
	}
	a.descriptors = a.manager.Descriptors()
	return nil
}

// Start boots every registered service (scheduler, HTTP API, and anything
// attached afterward) in registration order.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts down every started service in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns the architectural placement of every registered
// service, for diagnostics and documentation.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

// newJackpotCache builds the optional Redis-backed cache-aside in front of
// the slots jackpot pool (§5 "Shared resources"). A blank RedisAddr leaves
// gambling.Service reading straight through to Postgres on every request.
func newJackpotCache(cfg config.CacheConfig) *hotrow.Cache[gambling.JackpotPool] {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ttl := time.Duration(cfg.JackpotTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return hotrow.New[gambling.JackpotPool](client, "economy:jackpot_pool", ttl)
}
