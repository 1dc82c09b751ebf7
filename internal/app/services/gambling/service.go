// Package gambling implements slots, session-stateful blackjack, escrowed
// PvP coin-flip, and lottery draws (§4.11).
package gambling

import (
	"context"
	"sort"
	"time"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	"github.com/kingpin-stream/economy-core/internal/app/platform/hotrow"
	"github.com/kingpin-stream/economy-core/internal/app/platform/rng"
	cooldownsvc "github.com/kingpin-stream/economy-core/internal/app/services/cooldown"
	"github.com/kingpin-stream/economy-core/internal/app/storage"
	"github.com/kingpin-stream/economy-core/pkg/config"
)

// cardDeck is a simplified, suit-less deck: ranks 2-10 once each, the four
// ten-valued face cards folded into a single weighted "10", and the ace as
// 11 (demoted to 1 on bust by formula.HandValue).
var cardDeck = []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 10, 10, 11}

func dealCard(src rng.Source) int {
	return cardDeck[src.IntN(len(cardDeck))]
}

// Service implements the four gambling subsystems of §4.11.
type Service struct {
	store        storage.Store
	clock        clock.Clock
	rng          rng.Source
	cfg          config.EconomyConfig
	cooldowns    *cooldownsvc.Service
	jackpotCache *hotrow.Cache[gambling.JackpotPool]
}

// New constructs a Service. jackpotCache may be nil; the CAS write path
// never depends on it and always reads the authoritative row directly.
func New(store storage.Store, clk clock.Clock, src rng.Source, cfg config.EconomyConfig, cooldowns *cooldownsvc.Service, jackpotCache *hotrow.Cache[gambling.JackpotPool]) *Service {
	return &Service{store: store, clock: clk, rng: src, cfg: cfg, cooldowns: cooldowns, jackpotCache: jackpotCache}
}

// JackpotStatus returns the current jackpot pool for display purposes (e.g.
// a "current jackpot" readout), served cache-aside through jackpotCache
// when configured (§5 "Shared resources").
func (s *Service) JackpotStatus(ctx context.Context) (gambling.JackpotPool, error) {
	pool, err := s.jackpotCache.Get(ctx, s.store.GetJackpotPool)
	if err != nil {
		return gambling.JackpotPool{}, apperrors.NewInternal("load jackpot pool", err)
	}
	return pool, nil
}

func (s *Service) maxBet(tierMultiplier float64) int64 {
	return int64(float64(s.cfg.GamblingMaxBetBase) * tierMultiplier)
}

// precheck enforces the §4.11 "Common pre-check": not jailed, wealth >=
// MIN_BET, wager <= per-tier maxBet. This is the advisory, pre-WithTx form;
// recheckJail re-validates the jail status inside the committing
// transaction once the user row is locked.
func (s *Service) precheck(ctx context.Context, userID string, wager int64, tierMultiplier float64) error {
	status, err := s.cooldowns.JailStatus(ctx, nil, userID)
	if err != nil {
		return err
	}
	if status.Active {
		return apperrors.NewCooldown("gambling", status.RemainingSeconds)
	}
	if wager < s.cfg.GamblingMinBet {
		return apperrors.NewValidation("wager", "below the minimum bet")
	}
	if wager > s.maxBet(tierMultiplier) {
		return apperrors.NewValidation("wager", "exceeds the maximum bet for your tier")
	}
	return nil
}

// recheckJail re-validates jail status against the live row inside the
// committing transaction, after LockUser. precheck alone cannot catch a
// jailing that commits in the gap between it and WithTx opening.
func (s *Service) recheckJail(ctx context.Context, tx storage.Store, userID string) error {
	status, err := s.cooldowns.JailStatus(ctx, tx, userID)
	if err != nil {
		return err
	}
	if status.Active {
		return apperrors.NewCooldown("gambling", status.RemainingSeconds)
	}
	return nil
}

func (s *Service) recordSession(ctx context.Context, tx storage.Store, userID string, game gambling.Game, wager, payout int64, outcome string) error {
	if _, err := tx.AppendSession(ctx, gambling.Session{
		UserID:   userID,
		Game:     game,
		Wager:    wager,
		Payout:   payout,
		Outcome:  outcome,
		PlayedAt: s.clock.Now(),
	}); err != nil {
		return apperrors.NewInternal("append gambling session", err)
	}
	stats, err := tx.GetStats(ctx, userID, game)
	if err != nil {
		return apperrors.NewInternal("load gambling stats", err)
	}
	next := stats.ApplyRound(wager, payout)
	next.UserID, next.Game = userID, game
	if _, err := tx.UpsertStats(ctx, next); err != nil {
		return apperrors.NewInternal("upsert gambling stats", err)
	}
	if _, err := tx.AppendEvent(ctx, gameevent.Event{
		UserID:      userID,
		Kind:        gameevent.KindGambling,
		WealthDelta: payout - wager,
		CreatedAt:   s.clock.Now(),
		Details:     map[string]interface{}{"game": string(game), "outcome": outcome},
	}); err != nil {
		return apperrors.NewInternal("append gambling event", err)
	}
	return nil
}

// SlotsResult reports a single spin's outcome.
type SlotsResult struct {
	Outcome gambling.Session
	Reels   [3]formula.SlotSymbol
	Net     int64
}

// Spin runs one slots round (§4.11 Slots).
func (s *Service) Spin(ctx context.Context, userID string, wager int64, tierMultiplier, randomJackpotChance float64) (SlotsResult, error) {
	if err := s.precheck(ctx, userID, wager, tierMultiplier); err != nil {
		return SlotsResult{}, err
	}
	var result SlotsResult
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if err := s.recheckJail(ctx, tx, userID); err != nil {
			return err
		}
		if user.Wealth < wager {
			return apperrors.NewInsufficient("wealth", wager, user.Wealth)
		}

		pool, perr := tx.GetJackpotPool(ctx)
		if perr != nil {
			return apperrors.NewInternal("load jackpot pool", perr)
		}

		reels := formula.SpinSlots(gambling.DefaultSlotTable, s.rng)
		outcome, payout := formula.SlotsPayout(reels, wager, pool.CurrentPool, randomJackpotChance, s.rng)
		net := payout - wager

		user.Wealth += net
		if user.Wealth < 0 {
			user.Wealth = 0
		}
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("update user", err)
		}

		nextPool := pool
		if outcome == formula.SlotsJackpot {
			nextPool.CurrentPool = s.cfg.JackpotBasePool
			nextPool.LastWinnerID = userID
			nextPool.LastWinAmount = payout
			nextPool.LastWonAt = s.clock.Now()
		} else {
			nextPool.CurrentPool += int64(float64(wager) * s.cfg.JackpotContributionRate)
		}
		ok, caserr := tx.CompareAndSwapJackpotPool(ctx, pool, nextPool)
		if caserr != nil {
			return apperrors.NewInternal("update jackpot pool", caserr)
		}
		if !ok {
			return apperrors.NewConflict("jackpot pool changed concurrently, retry")
		}

		if err := s.recordSession(ctx, tx, userID, gambling.GameSlots, wager, payout, string(outcome)); err != nil {
			return err
		}
		result = SlotsResult{Reels: reels, Net: net}
		return nil
	})
	if txErr != nil {
		return SlotsResult{}, txErr
	}
	s.jackpotCache.Invalidate(ctx)
	return result, nil
}

// --- Blackjack ------------------------------------------------------------

// StartBlackjack debits the wager and deals the opening hand, immediately
// resolving a player natural (§4.11 Blackjack Start).
func (s *Service) StartBlackjack(ctx context.Context, userID string, wager int64, tierMultiplier float64) (gambling.BlackjackSession, error) {
	if err := s.precheck(ctx, userID, wager, tierMultiplier); err != nil {
		return gambling.BlackjackSession{}, err
	}
	var session gambling.BlackjackSession
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		existing, eerr := tx.GetOpenBlackjackSession(ctx, userID)
		if eerr != nil {
			return apperrors.NewInternal("check open blackjack session", eerr)
		}
		if existing != nil {
			return apperrors.NewConflict("you already have a blackjack hand in progress")
		}
		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if err := s.recheckJail(ctx, tx, userID); err != nil {
			return err
		}
		if user.Wealth < wager {
			return apperrors.NewInsufficient("wealth", wager, user.Wealth)
		}
		user.Wealth -= wager
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit wager", err)
		}

		created, cerr := tx.CreateBlackjackSession(ctx, gambling.BlackjackSession{
			UserID:      userID,
			Wager:       wager,
			PlayerCards: []int{dealCard(s.rng), dealCard(s.rng)},
			DealerCards: []int{dealCard(s.rng), dealCard(s.rng)},
			Status:      gambling.BJPlaying,
			CreatedAt:   s.clock.Now(),
		})
		if cerr != nil {
			return apperrors.NewInternal("create blackjack session", cerr)
		}
		session = created

		value, _ := formula.HandValue(session.PlayerCards)
		if len(session.PlayerCards) == 2 && value == 21 {
			session.Status = gambling.BJBlackjack
			resolved, rerr := s.resolveBlackjack(ctx, tx, session)
			if rerr != nil {
				return rerr
			}
			session = resolved
		}
		return nil
	})
	if txErr != nil {
		return gambling.BlackjackSession{}, txErr
	}
	return session, nil
}

// Hit appends a card to the player's hand, busting into resolution on > 21.
func (s *Service) Hit(ctx context.Context, sessionID string) (gambling.BlackjackSession, error) {
	var session gambling.BlackjackSession
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		sess, err := tx.GetBlackjackSession(ctx, sessionID)
		if err != nil {
			return apperrors.NewNotFound("blackjack session", sessionID)
		}
		if sess.IsTerminal() {
			return apperrors.NewConflict("this hand is already resolved")
		}
		sess.PlayerCards = append(sess.PlayerCards, dealCard(s.rng))
		value, _ := formula.HandValue(sess.PlayerCards)
		if value > 21 {
			sess.Status = gambling.BJBusted
			resolved, rerr := s.resolveBlackjack(ctx, tx, sess)
			if rerr != nil {
				return rerr
			}
			session = resolved
			return nil
		}
		updated, uerr := tx.UpdateBlackjackSession(ctx, sess)
		if uerr != nil {
			return apperrors.NewInternal("update blackjack session", uerr)
		}
		session = updated
		return nil
	})
	if txErr != nil {
		return gambling.BlackjackSession{}, txErr
	}
	return session, nil
}

// Stand invokes resolution without drawing another card.
func (s *Service) Stand(ctx context.Context, sessionID string) (gambling.BlackjackSession, error) {
	var session gambling.BlackjackSession
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		sess, err := tx.GetBlackjackSession(ctx, sessionID)
		if err != nil {
			return apperrors.NewNotFound("blackjack session", sessionID)
		}
		if sess.IsTerminal() {
			return apperrors.NewConflict("this hand is already resolved")
		}
		sess.Status = gambling.BJStanding
		resolved, rerr := s.resolveBlackjack(ctx, tx, sess)
		if rerr != nil {
			return rerr
		}
		session = resolved
		return nil
	})
	if txErr != nil {
		return gambling.BlackjackSession{}, txErr
	}
	return session, nil
}

// Double requires exactly two player cards and sufficient funds, debits a
// matching second wager, deals one card, then resolves.
func (s *Service) Double(ctx context.Context, sessionID string) (gambling.BlackjackSession, error) {
	var session gambling.BlackjackSession
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		sess, err := tx.GetBlackjackSession(ctx, sessionID)
		if err != nil {
			return apperrors.NewNotFound("blackjack session", sessionID)
		}
		if sess.IsTerminal() {
			return apperrors.NewConflict("this hand is already resolved")
		}
		if len(sess.PlayerCards) != 2 {
			return apperrors.NewPolicy("can only double down on the first two cards")
		}
		user, uerr := tx.LockUser(ctx, sess.UserID)
		if uerr != nil {
			return apperrors.NewNotFound("user", sess.UserID)
		}
		if user.Wealth < sess.Wager {
			return apperrors.NewInsufficient("wealth", sess.Wager, user.Wealth)
		}
		user.Wealth -= sess.Wager
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit double-down wager", err)
		}
		sess.Wager *= 2
		sess.Doubled = true
		sess.PlayerCards = append(sess.PlayerCards, dealCard(s.rng))

		value, _ := formula.HandValue(sess.PlayerCards)
		if value > 21 {
			sess.Status = gambling.BJBusted
		} else {
			sess.Status = gambling.BJStanding
		}
		resolved, rerr := s.resolveBlackjack(ctx, tx, sess)
		if rerr != nil {
			return rerr
		}
		session = resolved
		return nil
	})
	if txErr != nil {
		return gambling.BlackjackSession{}, txErr
	}
	return session, nil
}

func (s *Service) resolveBlackjack(ctx context.Context, tx storage.Store, sess gambling.BlackjackSession) (gambling.BlackjackSession, error) {
	playerValue, _ := formula.HandValue(sess.PlayerCards)
	playerNatural := len(sess.PlayerCards) == 2 && playerValue == 21

	var payout int64
	switch {
	case playerValue > 21:
		payout = 0
	default:
		for {
			dealerValue, dealerSoft := formula.HandValue(sess.DealerCards)
			if !formula.DealerShouldHit(dealerValue, dealerSoft) {
				break
			}
			sess.DealerCards = append(sess.DealerCards, dealCard(s.rng))
		}
		dealerValue, _ := formula.HandValue(sess.DealerCards)
		dealerNatural := len(sess.DealerCards) == 2 && dealerValue == 21

		switch {
		case playerNatural && !dealerNatural:
			payout = int64(float64(sess.Wager) * 2.5)
		case dealerValue > 21 || playerValue > dealerValue:
			payout = 2 * sess.Wager
		case playerValue == dealerValue:
			payout = sess.Wager
		default:
			payout = 0
		}
	}

	user, uerr := tx.LockUser(ctx, sess.UserID)
	if uerr != nil {
		return gambling.BlackjackSession{}, apperrors.NewInternal("lock user", uerr)
	}
	user.Wealth += payout
	if _, err := tx.UpdateUser(ctx, user); err != nil {
		return gambling.BlackjackSession{}, apperrors.NewInternal("credit blackjack payout", err)
	}

	sess.Status = gambling.BJResolved
	sess.Payout = payout
	sess.ResolvedAt = s.clock.Now()
	updated, err := tx.UpdateBlackjackSession(ctx, sess)
	if err != nil {
		return gambling.BlackjackSession{}, apperrors.NewInternal("resolve blackjack session", err)
	}

	outcome := "loss"
	if payout > sess.Wager {
		outcome = "win"
	} else if payout == sess.Wager {
		outcome = "push"
	}
	if err := s.recordSession(ctx, tx, sess.UserID, gambling.GameBlackjack, sess.Wager, payout, outcome); err != nil {
		return gambling.BlackjackSession{}, err
	}
	return updated, nil
}

// --- Coin-flip --------------------------------------------------------------

// CreateCoinFlip debits the challenger's wager and opens a new escrowed
// challenge (§4.11 Coin-flip Create).
func (s *Service) CreateCoinFlip(ctx context.Context, challengerID string, wager int64, call gambling.CoinFlipCall, tierMultiplier float64) (gambling.CoinFlipChallenge, error) {
	if err := s.precheck(ctx, challengerID, wager, tierMultiplier); err != nil {
		return gambling.CoinFlipChallenge{}, err
	}
	var created gambling.CoinFlipChallenge
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		existing, eerr := tx.GetOpenCoinFlipByChallenger(ctx, challengerID)
		if eerr != nil {
			return apperrors.NewInternal("check open coin flip", eerr)
		}
		if existing != nil {
			return apperrors.NewConflict("you already have an open coin-flip challenge")
		}
		user, uerr := tx.LockUser(ctx, challengerID)
		if uerr != nil {
			return apperrors.NewNotFound("user", challengerID)
		}
		if err := s.recheckJail(ctx, tx, challengerID); err != nil {
			return err
		}
		if user.Wealth < wager {
			return apperrors.NewInsufficient("wealth", wager, user.Wealth)
		}
		user.Wealth -= wager
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit wager", err)
		}
		c, cerr := tx.CreateCoinFlip(ctx, gambling.CoinFlipChallenge{
			ChallengerID:   challengerID,
			WagerAmount:    wager,
			ChallengerCall: call,
			Status:         gambling.FlipOpen,
			ExpiresAt:      s.clock.Now().Add(time.Duration(s.cfg.CoinFlipExpiryMinutes) * time.Minute),
			CreatedAt:      s.clock.Now(),
		})
		if cerr != nil {
			return apperrors.NewInternal("create coin flip", cerr)
		}
		created = c
		return nil
	})
	if txErr != nil {
		return gambling.CoinFlipChallenge{}, txErr
	}
	return created, nil
}

// AcceptCoinFlip debits the acceptor's matching wager, flips the coin, and
// pays 2x the wager to the winner (§4.11 Coin-flip Accept).
func (s *Service) AcceptCoinFlip(ctx context.Context, acceptorID, challengeID string) (gambling.CoinFlipChallenge, error) {
	var resolved gambling.CoinFlipChallenge
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		c, err := tx.GetCoinFlip(ctx, challengeID)
		if err != nil {
			return apperrors.NewNotFound("coin flip challenge", challengeID)
		}
		if c.Status != gambling.FlipOpen {
			return apperrors.NewConflict("this challenge is no longer open")
		}
		if c.IsExpired(s.clock.Now()) {
			return apperrors.NewExpired("this challenge has expired")
		}
		if c.ChallengerID == acceptorID {
			return apperrors.NewPolicy("cannot accept your own challenge")
		}
		acceptor, aerr := tx.LockUser(ctx, acceptorID)
		if aerr != nil {
			return apperrors.NewNotFound("user", acceptorID)
		}
		if acceptor.Wealth < c.WagerAmount {
			return apperrors.NewInsufficient("wealth", c.WagerAmount, acceptor.Wealth)
		}
		acceptor.Wealth -= c.WagerAmount
		if _, err := tx.UpdateUser(ctx, acceptor); err != nil {
			return apperrors.NewInternal("debit acceptor wager", err)
		}

		heads := s.rng.Float64() < 0.5
		flipResult := gambling.CallTails
		if heads {
			flipResult = gambling.CallHeads
		}
		winnerID := acceptorID
		if c.ChallengerCall == flipResult {
			winnerID = c.ChallengerID
		}
		winner, werr := tx.LockUser(ctx, winnerID)
		if werr != nil {
			return apperrors.NewInternal("lock winner", werr)
		}
		winner.Wealth += 2 * c.WagerAmount
		if _, err := tx.UpdateUser(ctx, winner); err != nil {
			return apperrors.NewInternal("credit coin flip winner", err)
		}

		c.AcceptorID = acceptorID
		c.WinnerID = winnerID
		c.Status = gambling.FlipResolved
		c.ResolvedAt = s.clock.Now()
		updated, uerr := tx.UpdateCoinFlip(ctx, c)
		if uerr != nil {
			return apperrors.NewInternal("resolve coin flip", uerr)
		}

		for _, p := range []string{c.ChallengerID, acceptorID} {
			outcome := "loss"
			if p == winnerID {
				outcome = "win"
			}
			payout := int64(0)
			if p == winnerID {
				payout = 2 * c.WagerAmount
			}
			if err := s.recordSession(ctx, tx, p, gambling.GameCoinFlip, c.WagerAmount, payout, outcome); err != nil {
				return err
			}
		}
		resolved = updated
		return nil
	})
	if txErr != nil {
		return gambling.CoinFlipChallenge{}, txErr
	}
	return resolved, nil
}

// CancelCoinFlip refunds the challenger and cancels an open challenge.
func (s *Service) CancelCoinFlip(ctx context.Context, challengerID, challengeID string) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		c, err := tx.GetCoinFlip(ctx, challengeID)
		if err != nil {
			return apperrors.NewNotFound("coin flip challenge", challengeID)
		}
		if c.ChallengerID != challengerID {
			return apperrors.NewAuthz("not your challenge")
		}
		if c.Status != gambling.FlipOpen {
			return apperrors.NewConflict("this challenge is no longer open")
		}
		user, uerr := tx.LockUser(ctx, challengerID)
		if uerr != nil {
			return apperrors.NewNotFound("user", challengerID)
		}
		user.Wealth += c.WagerAmount
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("refund wager", err)
		}
		c.Status = gambling.FlipCancelled
		c.ResolvedAt = s.clock.Now()
		_, err = tx.UpdateCoinFlip(ctx, c)
		if err != nil {
			return apperrors.NewInternal("cancel coin flip", err)
		}
		return nil
	})
}

// ExpireOpenChallenges refunds and expires stale open coin-flip challenges
// (scheduler-driven).
func (s *Service) ExpireOpenChallenges(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ListExpiredCoinFlips(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, apperrors.NewInternal("list expired coin flips", err)
	}
	count := 0
	for _, c := range expired {
		if err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			user, uerr := tx.LockUser(ctx, c.ChallengerID)
			if uerr != nil {
				return uerr
			}
			user.Wealth += c.WagerAmount
			if _, err := tx.UpdateUser(ctx, user); err != nil {
				return err
			}
			c.Status = gambling.FlipExpired
			c.ResolvedAt = s.clock.Now()
			_, err := tx.UpdateCoinFlip(ctx, c)
			return err
		}); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// --- Lottery ----------------------------------------------------------------

// BuyTicket debits the ticket cost and adds the house-cut-adjusted
// contribution to the draw's prize pool (§4.11 Lottery).
func (s *Service) BuyTicket(ctx context.Context, userID, drawID string, numbers []int) (gambling.Ticket, error) {
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	if len(sorted) != s.cfg.LotteryNumberCount {
		return gambling.Ticket{}, apperrors.NewValidation("numbers", "wrong ticket size")
	}
	for i, n := range sorted {
		if n < 1 || n > s.cfg.LotteryNumberMax {
			return gambling.Ticket{}, apperrors.NewValidation("numbers", "out of range")
		}
		if i > 0 && sorted[i] == sorted[i-1] {
			return gambling.Ticket{}, apperrors.NewValidation("numbers", "must be unique")
		}
	}

	var ticket gambling.Ticket
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		draw, derr := tx.GetLotteryDraw(ctx, drawID)
		if derr != nil {
			return apperrors.NewNotFound("lottery draw", drawID)
		}
		if draw.Status != gambling.DrawOpen {
			return apperrors.NewExpired("this draw is no longer open")
		}
		count, cerr := tx.CountUserLotteryTickets(ctx, userID, drawID)
		if cerr != nil {
			return apperrors.NewInternal("count user tickets", cerr)
		}
		if count >= s.cfg.LotteryMaxTicketsPerDraw {
			return apperrors.NewPolicy("reached the maximum tickets for this draw")
		}
		dup, derr2 := tx.TicketNumbersExist(ctx, userID, drawID, sorted)
		if derr2 != nil {
			return apperrors.NewInternal("check duplicate ticket", derr2)
		}
		if dup {
			return apperrors.NewConflict("you already hold a ticket with this number set")
		}

		user, uerr := tx.LockUser(ctx, userID)
		if uerr != nil {
			return apperrors.NewNotFound("user", userID)
		}
		if user.Wealth < s.cfg.LotteryTicketCost {
			return apperrors.NewInsufficient("wealth", s.cfg.LotteryTicketCost, user.Wealth)
		}
		user.Wealth -= s.cfg.LotteryTicketCost
		if _, err := tx.UpdateUser(ctx, user); err != nil {
			return apperrors.NewInternal("debit ticket cost", err)
		}

		draw.PrizePool += int64(float64(s.cfg.LotteryTicketCost) * (1 - s.cfg.LotteryHouseCut))
		if _, err := tx.UpdateLotteryDraw(ctx, draw); err != nil {
			return apperrors.NewInternal("credit prize pool", err)
		}

		t, terr := tx.CreateLotteryTicket(ctx, gambling.Ticket{
			UserID:    userID,
			DrawID:    drawID,
			Numbers:   sorted,
			CreatedAt: s.clock.Now(),
		})
		if terr != nil {
			return apperrors.NewInternal("create lottery ticket", terr)
		}
		ticket = t
		return nil
	})
	if txErr != nil {
		return gambling.Ticket{}, txErr
	}
	return ticket, nil
}

// ExecuteDraw runs the §4.11 ExecuteDraw algorithm: rolls unique winning
// numbers, pays the full pool to the earliest 3-match ticket (if any),
// pays partial-match tickets from the house, and completes the draw.
func (s *Service) ExecuteDraw(ctx context.Context, drawID string) (gambling.Draw, error) {
	var draw gambling.Draw
	txErr := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		d, derr := tx.GetLotteryDraw(ctx, drawID)
		if derr != nil {
			return apperrors.NewNotFound("lottery draw", drawID)
		}
		if d.Status != gambling.DrawOpen {
			return apperrors.NewConflict("draw already completed")
		}
		winning := s.drawUniqueNumbers()
		d.WinningNumbers = winning

		tickets, terr := tx.ListLotteryTickets(ctx, drawID)
		if terr != nil {
			return apperrors.NewInternal("list tickets", terr)
		}

		var jackpotWinner *gambling.Ticket
		for i := range tickets {
			t := tickets[i]
			matches := t.MatchCount(winning)
			switch {
			case matches == len(winning):
				if jackpotWinner == nil || t.CreatedAt.Before(jackpotWinner.CreatedAt) {
					jackpotWinner = &tickets[i]
				}
			case matches == 2 || matches == 1:
				payout := formula.LotteryPartialPayout(matches, s.cfg.LotteryTicketCost)
				if payout > 0 {
					user, uerr := tx.LockUser(ctx, t.UserID)
					if uerr != nil {
						continue
					}
					user.Wealth += payout
					if _, err := tx.UpdateUser(ctx, user); err != nil {
						return apperrors.NewInternal("credit partial lottery payout", err)
					}
				}
			}
		}
		if jackpotWinner != nil {
			user, uerr := tx.LockUser(ctx, jackpotWinner.UserID)
			if uerr != nil {
				return apperrors.NewInternal("lock jackpot winner", uerr)
			}
			user.Wealth += d.PrizePool
			if _, err := tx.UpdateUser(ctx, user); err != nil {
				return apperrors.NewInternal("credit lottery jackpot", err)
			}
		}

		d.Status = gambling.DrawCompleted
		d.CompletedAt = s.clock.Now()
		updated, uerr := tx.UpdateLotteryDraw(ctx, d)
		if uerr != nil {
			return apperrors.NewInternal("complete draw", uerr)
		}
		draw = updated
		return nil
	})
	if txErr != nil {
		return gambling.Draw{}, txErr
	}
	return draw, nil
}

func (s *Service) drawUniqueNumbers() []int {
	seen := make(map[int]struct{}, s.cfg.LotteryNumberCount)
	numbers := make([]int, 0, s.cfg.LotteryNumberCount)
	for len(numbers) < s.cfg.LotteryNumberCount {
		n := s.rng.IntN(s.cfg.LotteryNumberMax) + 1
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// OpenNewDraw creates the next open draw at the configured interval ahead
// (scheduler-driven, following ExecuteDraw).
func (s *Service) OpenNewDraw(ctx context.Context, drawType string, drawAt time.Time) (gambling.Draw, error) {
	d, err := s.store.CreateLotteryDraw(ctx, gambling.Draw{
		DrawType:  drawType,
		DrawAt:    drawAt,
		Status:    gambling.DrawOpen,
		PrizePool: 0,
	})
	if err != nil {
		return gambling.Draw{}, apperrors.NewInternal("create lottery draw", err)
	}
	return d, nil
}

// DueDraws lists open draws at or past their draw_at instant
// (§4.11 "at or after draw_at, open draws are executed").
func (s *Service) DueDraws(ctx context.Context, limit int) ([]gambling.Draw, error) {
	rows, err := s.store.ListDueLotteryDraws(ctx, s.clock.Now(), limit)
	if err != nil {
		return nil, apperrors.NewInternal("list due draws", err)
	}
	return rows, nil
}
