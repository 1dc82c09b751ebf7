// Package gambling defines the slots, blackjack, coin-flip, and lottery
// record types (§3, §4.11).
package gambling

import (
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
)

// DefaultSlotTable is the stock weighted reel used by Slots (§4.11).
var DefaultSlotTable = []formula.SlotSymbol{
	{Name: "cherry", Weight: 40, TripleMult: 3, PairMult: 1},
	{Name: "lemon", Weight: 30, TripleMult: 5, PairMult: 1.5},
	{Name: "bell", Weight: 18, TripleMult: 10, PairMult: 2},
	{Name: "seven", Weight: 10, TripleMult: 25, PairMult: 3},
	{Name: "diamond", Weight: 2, Jackpot: true},
}

// Game identifies which gambling subsystem a session/stat row belongs to.
type Game string

const (
	GameSlots     Game = "slots"
	GameBlackjack Game = "blackjack"
	GameCoinFlip  Game = "coinflip"
	GameLottery   Game = "lottery"
)

// Session is a single gambling round's ledger row (§4.11 "Append session +
// event").
type Session struct {
	ID         string
	UserID     string
	Game       Game
	Wager      int64
	Payout     int64
	Outcome    string
	PlayedAt   time.Time
}

// Net is the house's gain (or loss, if negative) for this round.
func (s Session) Net() int64 {
	return s.Wager - s.Payout
}

// Stats is the per-user, per-game aggregate row (§4.11 "update per-user
// gambling stats").
type Stats struct {
	UserID         string
	Game           Game
	TotalWagered   int64
	TotalWon       int64
	RoundsPlayed   int64
	CurrentStreak  int64
	BestStreak     int64
	BestWin        int64
}

// ApplyRound folds one session's result into the running stats.
func (st Stats) ApplyRound(wager, payout int64) Stats {
	next := st
	next.TotalWagered += wager
	next.TotalWon += payout
	next.RoundsPlayed++
	if payout > wager {
		next.CurrentStreak++
		if next.CurrentStreak > next.BestStreak {
			next.BestStreak = next.CurrentStreak
		}
	} else {
		next.CurrentStreak = 0
	}
	if payout > next.BestWin {
		next.BestWin = payout
	}
	return next
}

// BlackjackStatus is the state of a blackjack session (§4.15 state machine).
type BlackjackStatus string

const (
	BJPlaying   BlackjackStatus = "playing"
	BJStanding  BlackjackStatus = "standing"
	BJBusted    BlackjackStatus = "busted"
	BJBlackjack BlackjackStatus = "blackjack"
	BJResolved  BlackjackStatus = "resolved"
)

// BlackjackSession is a session-stateful hand in progress or resolved.
type BlackjackSession struct {
	ID            string
	UserID        string
	Wager         int64
	PlayerCards   []int // 2-11, ace represented as 11 and demoted by HandValue
	DealerCards   []int
	Status        BlackjackStatus
	Doubled       bool
	Payout        int64
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// IsTerminal reports whether the session has left the playing state.
func (b BlackjackSession) IsTerminal() bool {
	return b.Status != BJPlaying
}

// CoinFlipCall is the challenger's guess.
type CoinFlipCall string

const (
	CallHeads CoinFlipCall = "heads"
	CallTails CoinFlipCall = "tails"
)

// CoinFlipStatus is the lifecycle of a PvP coin-flip challenge.
type CoinFlipStatus string

const (
	FlipOpen      CoinFlipStatus = "open"
	FlipResolved  CoinFlipStatus = "resolved"
	FlipCancelled CoinFlipStatus = "cancelled"
	FlipExpired   CoinFlipStatus = "expired"
)

// CoinFlipChallenge is a wager held in escrow pending acceptance.
type CoinFlipChallenge struct {
	ID             string
	ChallengerID   string
	WagerAmount    int64
	ChallengerCall CoinFlipCall
	Status         CoinFlipStatus
	AcceptorID     string
	WinnerID       string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	ResolvedAt     time.Time
}

// IsExpired reports whether an open challenge's TTL has passed.
func (c CoinFlipChallenge) IsExpired(now time.Time) bool {
	return c.Status == FlipOpen && now.After(c.ExpiresAt)
}

// DrawStatus is the lifecycle of a lottery draw.
type DrawStatus string

const (
	DrawOpen      DrawStatus = "open"
	DrawCompleted DrawStatus = "completed"
)

// Draw is a single lottery draw round.
type Draw struct {
	ID             string
	DrawType       string // "daily"
	DrawAt         time.Time
	Status         DrawStatus
	PrizePool      int64
	WinningNumbers []int
	CompletedAt    time.Time
}

// Ticket is one (user, draw, numbers) purchase.
type Ticket struct {
	ID        string
	UserID    string
	DrawID    string
	Numbers   []int // fixed size N, unique, sorted, values in [1, MAX]
	CreatedAt time.Time
}

// MatchCount counts how many of t's numbers appear in winningNumbers.
func (t Ticket) MatchCount(winningNumbers []int) int {
	set := make(map[int]struct{}, len(winningNumbers))
	for _, n := range winningNumbers {
		set[n] = struct{}{}
	}
	matches := 0
	for _, n := range t.Numbers {
		if _, ok := set[n]; ok {
			matches++
		}
	}
	return matches
}

// JackpotPool is the singleton slots jackpot row (§3).
type JackpotPool struct {
	CurrentPool  int64
	LastWinnerID string
	LastWinAmount int64
	LastWonAt    time.Time
}
