package gambling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	cooldownsvc "github.com/kingpin-stream/economy-core/internal/app/services/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/storage/memory"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

func newTestGamblingService(t *testing.T, src rng.Source, clk *clock.Frozen) (*Service, *memory.Memory, config.EconomyConfig) {
	t.Helper()
	store := memory.New()
	cfg := config.New().Economy
	cooldowns := cooldownsvc.New(store, clk)
	return New(store, clk, src, cfg, cooldowns, nil), store, cfg
}

// TestBlackjackDealerHitsSoftSeventeen covers the "hit on soft 17, stand on
// hard 17" rule: a dealer hand of ace+6 (soft 17) must draw once more, and
// once the extra card demotes the ace the resulting hard total stops play.
func TestBlackjackDealerHitsSoftSeventeen(t *testing.T) {
	// Deal order: player card 1 & 2 (8, 8), dealer card 1 & 2 (ace, 6), then
	// the dealer's single hit-on-soft-17 draw (10).
	src := rng.NewSequence(0.5, 0.5, 0.95, 0.35, 0.7)
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, store, _ := newTestGamblingService(t, src, clk)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, player.User{Kick: "bj-player", Wealth: 1000})
	require.NoError(t, err)

	session, err := svc.StartBlackjack(ctx, u.ID, 100, 1.0)
	require.NoError(t, err)
	require.Equal(t, []int{8, 8}, session.PlayerCards)
	require.Equal(t, []int{11, 6}, session.DealerCards)
	require.Equal(t, gambling.BJPlaying, session.Status)

	resolved, err := svc.Stand(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, gambling.BJResolved, resolved.Status)
	// Soft 17 (ace+6) must have drawn exactly one more card; that card (a
	// 10) demotes the ace, landing the dealer on a hard 17 that stops.
	assert.Equal(t, []int{11, 6, 10}, resolved.DealerCards)
	// Dealer's hard 17 beats the player's 16: the wager is lost.
	assert.Equal(t, int64(0), resolved.Payout)

	updated, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), updated.Wealth)
}

func TestBlackjackNaturalResolvesImmediately(t *testing.T) {
	// Player cards ace (11) + 10 = a natural 21, resolved without a Stand.
	src := rng.NewSequence(0.95, 0.7, 0.5, 0.5)
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, store, _ := newTestGamblingService(t, src, clk)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, player.User{Kick: "natural", Wealth: 1000})
	require.NoError(t, err)

	session, err := svc.StartBlackjack(ctx, u.ID, 100, 1.0)
	require.NoError(t, err)
	assert.Equal(t, gambling.BJResolved, session.Status)
	assert.True(t, session.IsTerminal())
	assert.Equal(t, int64(250), session.Payout) // 2.5x wager, dealer has no natural
}

// TestCoinFlipConcurrentAcceptOnlyOneWinner fires two concurrent Accept
// calls at the same open challenge. The in-memory store serializes every
// WithTx behind one mutex, so exactly one of the two must observe the
// challenge as still open; the other must see it already resolved.
func TestCoinFlipConcurrentAcceptOnlyOneWinner(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, store, _ := newTestGamblingService(t, rng.NewSequence(0.1), clk)
	ctx := context.Background()

	challenger, err := store.CreateUser(ctx, player.User{Kick: "flip-challenger", Wealth: 500})
	require.NoError(t, err)
	acceptorA, err := store.CreateUser(ctx, player.User{Kick: "flip-a", Wealth: 500})
	require.NoError(t, err)
	acceptorB, err := store.CreateUser(ctx, player.User{Kick: "flip-b", Wealth: 500})
	require.NoError(t, err)

	challenge, err := svc.CreateCoinFlip(ctx, challenger.ID, 100, gambling.CallHeads, 1.0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	acceptors := []string{acceptorA.ID, acceptorB.ID}
	for i, acceptorID := range acceptors {
		wg.Add(1)
		go func(idx int, acceptor string) {
			defer wg.Done()
			_, err := svc.AcceptCoinFlip(ctx, acceptor, challenge.ID)
			results[idx] = err
		}(i, acceptorID)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var serr *apperrors.ServiceError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, apperrors.Conflict, serr.Kind)
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	resolved, err := store.GetCoinFlip(ctx, challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, gambling.FlipResolved, resolved.Status)
}

// TestLotteryThreeMatchTieAwardsEarliestTicket covers the tie-break rule:
// when two tickets both match every winning number, the one created first
// (lowest ticket ID) wins the full prize pool.
func TestLotteryThreeMatchTieAwardsEarliestTicket(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := memory.New()
	cfg := config.New().Economy
	cfg.LotteryNumberCount = 3
	cfg.LotteryNumberMax = 10
	cfg.LotteryTicketCost = 100
	cfg.LotteryHouseCut = 0.20
	cfg.LotteryMaxTicketsPerDraw = 10
	cooldowns := cooldownsvc.New(store, clk)
	// Winning draw (1, 2, 3): buying tickets draws no random numbers, so the
	// sequence ExecuteDraw reads is set just before the draw below.
	svc := New(store, clk, rng.NewSequence(0.5), cfg, cooldowns, nil)
	ctx := context.Background()

	userA, err := store.CreateUser(ctx, player.User{Kick: "lotto-a", Wealth: 1000})
	require.NoError(t, err)
	userB, err := store.CreateUser(ctx, player.User{Kick: "lotto-b", Wealth: 1000})
	require.NoError(t, err)

	draw, err := svc.OpenNewDraw(ctx, "daily", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	ticketA, err := svc.BuyTicket(ctx, userA.ID, draw.ID, []int{1, 2, 3})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	ticketB, err := svc.BuyTicket(ctx, userB.ID, draw.ID, []int{1, 2, 3})
	require.NoError(t, err)
	require.True(t, ticketA.CreatedAt.Before(ticketB.CreatedAt))

	// drawUniqueNumbers draws IntN(10)+1 three times; these floats land on
	// 1, 2, 3 respectively and are all distinct, so no retries happen.
	svc.rng = rng.NewSequence(0.05, 0.15, 0.25)
	completed, err := svc.ExecuteDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, completed.WinningNumbers)
	assert.Equal(t, gambling.DrawCompleted, completed.Status)

	winner, err := store.GetUser(ctx, userA.ID)
	require.NoError(t, err)
	loser, err := store.GetUser(ctx, userB.ID)
	require.NoError(t, err)

	// Both tickets cost 100 at a 20% house cut: 80 contributed each, 160
	// total prize pool, paid entirely to the earliest ticket.
	assert.Equal(t, int64(1000-100+160), winner.Wealth)
	assert.Equal(t, int64(1000-100), loser.Wealth)
}

func TestSlotsSpinUpdatesJackpotPoolAndWealth(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	// Spin draws 3 reel symbols then (on a non-jackpot outcome) nothing
	// further; pick values that avoid hitting the rare diamond/jackpot slot.
	svc, store, cfg := newTestGamblingService(t, rng.NewSequence(0.1, 0.1, 0.1), clk)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, player.User{Kick: "spinner", Wealth: 1000})
	require.NoError(t, err)

	result, err := svc.Spin(ctx, u.ID, 50, 1.0, cfg.RandomJackpotChanceBase)
	require.NoError(t, err)
	assert.Len(t, result.Reels, 3)

	updated, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000)+result.Net, updated.Wealth)

	pool, err := store.GetJackpotPool(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pool.CurrentPool, int64(0))
}

func TestGamblingPrecheckRejectsJailedUser(t *testing.T) {
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, store, cfg := newTestGamblingService(t, rng.NewSequence(0.1), clk)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, player.User{Kick: "jailed-gambler", Wealth: 1000})
	require.NoError(t, err)
	require.NoError(t, svc.cooldowns.JailUser(ctx, store, u.ID, time.Duration(cfg.JailDurationMins)*time.Minute))

	_, err = svc.Spin(ctx, u.ID, 50, 1.0, cfg.RandomJackpotChanceBase)
	var serr *apperrors.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, apperrors.CooldownKind, serr.Kind)
}
