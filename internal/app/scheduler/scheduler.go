// Package scheduler drives the periodic jobs every economy domain depends
// on to reach eventual consistency between player commands: cooldown/jail
// expiry, buff and escrow sweeps, token reset/decay, business revenue,
// lottery draws, coin-flip expiry, and notification retention (§L15
// Schedulers). Sub-minute sweeps run on a plain ticker, grounded on the
// teacher's services/automation.Scheduler loop; daily/hourly boundaries run
// on a robfig/cron/v3 schedule layered on top, since a ticker alone cannot
// express "at midnight" without drifting.
package scheduler

import (
	"context"
	"sync"
	"time"

	core "github.com/kingpin-stream/economy-core/internal/app/core/service"
	buffsvc "github.com/kingpin-stream/economy-core/internal/app/services/buff"
	businesssvc "github.com/kingpin-stream/economy-core/internal/app/services/business"
	cooldownsvc "github.com/kingpin-stream/economy-core/internal/app/services/cooldown"
	currencysvc "github.com/kingpin-stream/economy-core/internal/app/services/currency"
	gamblingsvc "github.com/kingpin-stream/economy-core/internal/app/services/gambling"
	inventorysvc "github.com/kingpin-stream/economy-core/internal/app/services/inventory"
	missionsvc "github.com/kingpin-stream/economy-core/internal/app/services/mission"
	notificationsvc "github.com/kingpin-stream/economy-core/internal/app/services/notification"
	"github.com/kingpin-stream/economy-core/internal/app/metrics"
	"github.com/kingpin-stream/economy-core/internal/app/system"
	"github.com/kingpin-stream/economy-core/pkg/config"
	"github.com/kingpin-stream/economy-core/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Ensure Scheduler implements system.Service.
var _ system.Service = (*Scheduler)(nil)

const (
	// sweepBatchLimit bounds how many expired rows a single tick resolves,
	// so a large backlog spreads across ticks instead of blocking one.
	sweepBatchLimit = 200
)

// Scheduler owns every periodic job named in §L15.
type Scheduler struct {
	cooldowns    *cooldownsvc.Service
	buffs        *buffsvc.Service
	inventory    *inventorysvc.Service
	currency     *currencysvc.Service
	business     *businesssvc.Service
	mission      *missionsvc.Service
	gambling     *gamblingsvc.Service
	notification *notificationsvc.Service

	runtimeCfg config.RuntimeConfig
	economyCfg config.EconomyConfig
	log        *logger.Logger

	tickInterval time.Duration
	cronSched    *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Dependencies bundles every service the scheduler drives.
type Dependencies struct {
	Cooldowns    *cooldownsvc.Service
	Buffs        *buffsvc.Service
	Inventory    *inventorysvc.Service
	Currency     *currencysvc.Service
	Business     *businesssvc.Service
	Mission      *missionsvc.Service
	Gambling     *gamblingsvc.Service
	Notification *notificationsvc.Service
}

// New constructs a lifecycle-managed Scheduler.
func New(deps Dependencies, runtimeCfg config.RuntimeConfig, economyCfg config.EconomyConfig, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	interval := time.Duration(runtimeCfg.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		cooldowns:    deps.Cooldowns,
		buffs:        deps.Buffs,
		inventory:    deps.Inventory,
		currency:     deps.Currency,
		business:     deps.Business,
		mission:      deps.Mission,
		gambling:     deps.Gambling,
		notification: deps.Notification,
		runtimeCfg:   runtimeCfg,
		economyCfg:   economyCfg,
		log:          log,
		tickInterval: interval,
		cronSched:    cron.New(),
	}
}

// Name identifies the service to system.Manager.
func (s *Scheduler) Name() string { return "economy-scheduler" }

// Descriptor advertises the scheduler's architectural placement.
func (s *Scheduler) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:         "economy-scheduler",
		Domain:       "economy",
		Layer:        core.LayerEngine,
		Capabilities: []string{"sweep", "cron"},
	}
}

// Start begins the ticker loop and registers the cron boundary jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	if err := s.registerCronJobs(runCtx); err != nil {
		return err
	}
	s.cronSched.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.sweepTick(runCtx)
			}
		}
	}()

	s.log.Info("economy scheduler started")
	return nil
}

// Stop halts the ticker loop and the cron scheduler, waiting for in-flight
// jobs to finish or ctx to expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	cronDone := s.cronSched.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
		<-cronDone.Done()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("economy scheduler stopped")
	return nil
}

// registerCronJobs schedules the boundary-driven jobs: these fire at a
// wall-clock cadence (daily reset, hourly-ish business ticks) rather than
// "every N seconds", which a plain ticker cannot express without drift.
func (s *Scheduler) registerCronJobs(ctx context.Context) error {
	businessEvery := time.Duration(s.economyCfg.BusinessTicksPerDay)
	if businessEvery <= 0 {
		businessEvery = 8
	}
	businessSpec := "@every " + (24 * time.Hour / businessEvery).String()

	if _, err := s.cronSched.AddFunc("@midnight", func() { s.runJob(ctx, "token_daily_reset", s.jobTokenDailyReset) }); err != nil {
		return err
	}
	if _, err := s.cronSched.AddFunc("@hourly", func() { s.runJob(ctx, "token_decay", s.jobTokenDecay) }); err != nil {
		return err
	}
	if _, err := s.cronSched.AddFunc(businessSpec, func() { s.runJob(ctx, "business_revenue", s.jobBusinessRevenue) }); err != nil {
		return err
	}
	if _, err := s.cronSched.AddFunc("@daily", func() { s.runJob(ctx, "notification_retention", s.jobNotificationRetention) }); err != nil {
		return err
	}
	return nil
}

// sweepTick runs every sub-minute job once. Each job is independent: one
// failing does not stop the others from running.
func (s *Scheduler) sweepTick(ctx context.Context) {
	s.runJob(ctx, "cooldown_sweep", s.jobCooldownSweep)
	s.runJob(ctx, "buff_sweep", s.jobBuffSweep)
	s.runJob(ctx, "escrow_sweep", s.jobEscrowSweep)
	s.runJob(ctx, "mission_sweep", s.jobMissionSweep)
	s.runJob(ctx, "coinflip_expiry", s.jobCoinFlipExpiry)
	s.runJob(ctx, "lottery_draw", s.jobLotteryDraw)
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(ctx context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := fn(jobCtx)
	metrics.RecordSchedulerTick(name, err)
	if err != nil {
		s.log.WithError(err).WithField("job", name).Warn("scheduler job failed")
	}
}

func (s *Scheduler) jobCooldownSweep(ctx context.Context) error {
	_, err := s.cooldowns.SweepExpired(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobBuffSweep(ctx context.Context) error {
	_, err := s.buffs.SweepExpiredBuffs(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobEscrowSweep(ctx context.Context) error {
	_, err := s.inventory.SweepExpiredEscrow(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobMissionSweep(ctx context.Context) error {
	_, err := s.mission.SweepExpiredAssignments(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobCoinFlipExpiry(ctx context.Context) error {
	_, err := s.gambling.ExpireOpenChallenges(ctx, sweepBatchLimit)
	return err
}

// jobLotteryDraw executes every draw whose draw time has arrived, then
// opens the next draw so a ticket can always be bought (§4.11 Lottery).
func (s *Scheduler) jobLotteryDraw(ctx context.Context) error {
	due, err := s.gambling.DueDraws(ctx, sweepBatchLimit)
	if err != nil {
		return err
	}
	for _, d := range due {
		if _, err := s.gambling.ExecuteDraw(ctx, d.ID); err != nil {
			return err
		}
		if _, err := s.gambling.OpenNewDraw(ctx, d.DrawType, time.Now().UTC().Add(24*time.Hour)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) jobTokenDailyReset(ctx context.Context) error {
	_, err := s.currency.ResetDailyTokenCounters(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobTokenDecay(ctx context.Context) error {
	_, err := s.currency.ApplyDecay(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobBusinessRevenue(ctx context.Context) error {
	_, err := s.business.TickAll(ctx, sweepBatchLimit)
	return err
}

func (s *Scheduler) jobNotificationRetention(ctx context.Context) error {
	retention := time.Duration(s.runtimeCfg.NotificationRetention) * 24 * time.Hour
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	_, err := s.notification.Purge(ctx, retention)
	return err
}
