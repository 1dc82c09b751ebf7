package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/kingpin-stream/economy-core/internal/app/domain/gambling"
)

// --- Session / Stats ------------------------------------------------------

func (s *Store) AppendSession(ctx context.Context, sess gambling.Session) (gambling.Session, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	if sess.PlayedAt.IsZero() {
		sess.PlayedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO gambling_sessions (id, user_id, game, wager, payout, outcome, played_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sess.ID, sess.UserID, string(sess.Game), sess.Wager, sess.Payout, sess.Outcome, sess.PlayedAt)
	if err != nil {
		return gambling.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetStats(ctx context.Context, userID string, game gambling.Game) (gambling.Stats, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT user_id, game, total_wagered, total_won, rounds_played, current_streak, best_streak, best_win
		FROM player_gambling_stats WHERE user_id = $1 AND game = $2
	`, userID, string(game))
	var st gambling.Stats
	err := row.Scan(&st.UserID, &st.Game, &st.TotalWagered, &st.TotalWon, &st.RoundsPlayed,
		&st.CurrentStreak, &st.BestStreak, &st.BestWin)
	if err == sql.ErrNoRows {
		return gambling.Stats{UserID: userID, Game: game}, nil
	}
	return st, err
}

func (s *Store) UpsertStats(ctx context.Context, st gambling.Stats) (gambling.Stats, error) {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO player_gambling_stats (user_id, game, total_wagered, total_won, rounds_played,
			current_streak, best_streak, best_win)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id, game) DO UPDATE SET
			total_wagered = $3, total_won = $4, rounds_played = $5,
			current_streak = $6, best_streak = $7, best_win = $8
	`, st.UserID, string(st.Game), st.TotalWagered, st.TotalWon, st.RoundsPlayed,
		st.CurrentStreak, st.BestStreak, st.BestWin)
	if err != nil {
		return gambling.Stats{}, err
	}
	return st, nil
}

// --- Jackpot pool (singleton row, id = 1) ----------------------------------

func (s *Store) GetJackpotPool(ctx context.Context) (gambling.JackpotPool, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT current_pool, last_winner_id, last_win_amount, last_won_at FROM slot_jackpots WHERE id = 1
	`)
	var (
		p        gambling.JackpotPool
		winner   sql.NullString
		wonAt    sql.NullTime
	)
	err := row.Scan(&p.CurrentPool, &winner, &p.LastWinAmount, &wonAt)
	if err == sql.ErrNoRows {
		return gambling.JackpotPool{}, nil
	}
	if err != nil {
		return gambling.JackpotPool{}, err
	}
	p.LastWinnerID = fromNullString(winner)
	p.LastWonAt = fromNullTime(wonAt)
	return p, nil
}

// CompareAndSwapJackpotPool performs the conditional "WHERE current_pool =
// :observed" update the spec's §5 concurrency model requires for the
// shared jackpot singleton.
func (s *Store) CompareAndSwapJackpotPool(ctx context.Context, observed, next gambling.JackpotPool) (bool, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE slot_jackpots SET current_pool = $1, last_winner_id = $2, last_win_amount = $3, last_won_at = $4
		WHERE id = 1 AND current_pool = $5
	`, next.CurrentPool, toNullString(next.LastWinnerID), next.LastWinAmount, toNullTime(next.LastWonAt), observed.CurrentPool)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		var exists int
		_ = s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM slot_jackpots WHERE id = 1`).Scan(&exists)
		if exists == 0 {
			_, err := s.q(ctx).ExecContext(ctx, `
				INSERT INTO slot_jackpots (id, current_pool, last_winner_id, last_win_amount, last_won_at)
				VALUES (1, $1, $2, $3, $4)
			`, next.CurrentPool, toNullString(next.LastWinnerID), next.LastWinAmount, toNullTime(next.LastWonAt))
			return err == nil, err
		}
		return false, nil
	}
	return true, nil
}

// --- Blackjack --------------------------------------------------------

func intsToPQ(v []int) pq.Int64Array {
	out := make(pq.Int64Array, len(v))
	for i, n := range v {
		out[i] = int64(n)
	}
	return out
}

func pqToInts(v pq.Int64Array) []int {
	out := make([]int, len(v))
	for i, n := range v {
		out[i] = int(n)
	}
	return out
}

func scanBlackjack(sc rowScanner) (gambling.BlackjackSession, error) {
	var (
		b                     gambling.BlackjackSession
		playerCards, dealerCards pq.Int64Array
		resolvedAt            sql.NullTime
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.Wager, &playerCards, &dealerCards, &b.Status,
		&b.Doubled, &b.Payout, &b.CreatedAt, &resolvedAt); err != nil {
		return gambling.BlackjackSession{}, err
	}
	b.PlayerCards = pqToInts(playerCards)
	b.DealerCards = pqToInts(dealerCards)
	b.ResolvedAt = fromNullTime(resolvedAt)
	return b, nil
}

func (s *Store) CreateBlackjackSession(ctx context.Context, b gambling.BlackjackSession) (gambling.BlackjackSession, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO gambling_blackjack_sessions (id, user_id, wager, player_cards, dealer_cards,
			status, doubled, payout, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, b.ID, b.UserID, b.Wager, intsToPQ(b.PlayerCards), intsToPQ(b.DealerCards),
		string(b.Status), b.Doubled, b.Payout, b.CreatedAt, toNullTime(b.ResolvedAt))
	if err != nil {
		return gambling.BlackjackSession{}, err
	}
	return b, nil
}

func (s *Store) UpdateBlackjackSession(ctx context.Context, b gambling.BlackjackSession) (gambling.BlackjackSession, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE gambling_blackjack_sessions SET player_cards = $2, dealer_cards = $3, status = $4,
			doubled = $5, payout = $6, resolved_at = $7
		WHERE id = $1
	`, b.ID, intsToPQ(b.PlayerCards), intsToPQ(b.DealerCards), string(b.Status), b.Doubled, b.Payout, toNullTime(b.ResolvedAt))
	if err != nil {
		return gambling.BlackjackSession{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return gambling.BlackjackSession{}, sql.ErrNoRows
	}
	return b, nil
}

func (s *Store) GetOpenBlackjackSession(ctx context.Context, userID string) (*gambling.BlackjackSession, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, wager, player_cards, dealer_cards, status, doubled, payout, created_at, resolved_at
		FROM gambling_blackjack_sessions WHERE user_id = $1 AND status = $2
	`, userID, string(gambling.BJPlaying))
	b, err := scanBlackjack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetBlackjackSession(ctx context.Context, id string) (gambling.BlackjackSession, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, wager, player_cards, dealer_cards, status, doubled, payout, created_at, resolved_at
		FROM gambling_blackjack_sessions WHERE id = $1
	`, id)
	return scanBlackjack(row)
}

// --- Coin flip --------------------------------------------------------

func scanCoinFlip(sc rowScanner) (gambling.CoinFlipChallenge, error) {
	var (
		c                     gambling.CoinFlipChallenge
		acceptorID, winnerID  sql.NullString
		resolvedAt            sql.NullTime
	)
	if err := sc.Scan(&c.ID, &c.ChallengerID, &c.WagerAmount, &c.ChallengerCall, &c.Status,
		&acceptorID, &winnerID, &c.ExpiresAt, &c.CreatedAt, &resolvedAt); err != nil {
		return gambling.CoinFlipChallenge{}, err
	}
	c.AcceptorID = fromNullString(acceptorID)
	c.WinnerID = fromNullString(winnerID)
	c.ResolvedAt = fromNullTime(resolvedAt)
	return c, nil
}

func (s *Store) CreateCoinFlip(ctx context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO coin_flip_challenges (id, challenger_id, wager_amount, challenger_call, status,
			acceptor_id, winner_id, expires_at, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, c.ID, c.ChallengerID, c.WagerAmount, string(c.ChallengerCall), string(c.Status),
		toNullString(c.AcceptorID), toNullString(c.WinnerID), c.ExpiresAt, c.CreatedAt, toNullTime(c.ResolvedAt))
	if err != nil {
		return gambling.CoinFlipChallenge{}, err
	}
	return c, nil
}

func (s *Store) UpdateCoinFlip(ctx context.Context, c gambling.CoinFlipChallenge) (gambling.CoinFlipChallenge, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE coin_flip_challenges SET status = $2, acceptor_id = $3, winner_id = $4, resolved_at = $5
		WHERE id = $1
	`, c.ID, string(c.Status), toNullString(c.AcceptorID), toNullString(c.WinnerID), toNullTime(c.ResolvedAt))
	if err != nil {
		return gambling.CoinFlipChallenge{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return gambling.CoinFlipChallenge{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetCoinFlip(ctx context.Context, id string) (gambling.CoinFlipChallenge, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, challenger_id, wager_amount, challenger_call, status, acceptor_id, winner_id,
			expires_at, created_at, resolved_at
		FROM coin_flip_challenges WHERE id = $1
	`, id)
	return scanCoinFlip(row)
}

func (s *Store) GetOpenCoinFlipByChallenger(ctx context.Context, challengerID string) (*gambling.CoinFlipChallenge, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, challenger_id, wager_amount, challenger_call, status, acceptor_id, winner_id,
			expires_at, created_at, resolved_at
		FROM coin_flip_challenges WHERE challenger_id = $1 AND status = $2
	`, challengerID, string(gambling.FlipOpen))
	c, err := scanCoinFlip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListExpiredCoinFlips(ctx context.Context, before time.Time, limit int) ([]gambling.CoinFlipChallenge, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, challenger_id, wager_amount, challenger_call, status, acceptor_id, winner_id,
			expires_at, created_at, resolved_at
		FROM coin_flip_challenges WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at LIMIT $3
	`, string(gambling.FlipOpen), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gambling.CoinFlipChallenge
	for rows.Next() {
		c, err := scanCoinFlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Lottery --------------------------------------------------------

func scanDraw(sc rowScanner) (gambling.Draw, error) {
	var (
		d              gambling.Draw
		winningNumbers pq.Int64Array
		completedAt    sql.NullTime
	)
	if err := sc.Scan(&d.ID, &d.DrawType, &d.DrawAt, &d.Status, &d.PrizePool, &winningNumbers, &completedAt); err != nil {
		return gambling.Draw{}, err
	}
	d.WinningNumbers = pqToInts(winningNumbers)
	d.CompletedAt = fromNullTime(completedAt)
	return d, nil
}

func (s *Store) CreateLotteryDraw(ctx context.Context, d gambling.Draw) (gambling.Draw, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO lottery_draws (id, draw_type, draw_at, status, prize_pool, winning_numbers, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, d.ID, d.DrawType, d.DrawAt, string(d.Status), d.PrizePool, intsToPQ(d.WinningNumbers), toNullTime(d.CompletedAt))
	if err != nil {
		return gambling.Draw{}, err
	}
	return d, nil
}

func (s *Store) UpdateLotteryDraw(ctx context.Context, d gambling.Draw) (gambling.Draw, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE lottery_draws SET status = $2, prize_pool = $3, winning_numbers = $4, completed_at = $5
		WHERE id = $1
	`, d.ID, string(d.Status), d.PrizePool, intsToPQ(d.WinningNumbers), toNullTime(d.CompletedAt))
	if err != nil {
		return gambling.Draw{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return gambling.Draw{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *Store) GetOpenLotteryDraw(ctx context.Context, drawType string) (*gambling.Draw, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, draw_type, draw_at, status, prize_pool, winning_numbers, completed_at
		FROM lottery_draws WHERE draw_type = $1 AND status = $2 ORDER BY draw_at LIMIT 1
	`, drawType, string(gambling.DrawOpen))
	d, err := scanDraw(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetLotteryDraw(ctx context.Context, id string) (gambling.Draw, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, draw_type, draw_at, status, prize_pool, winning_numbers, completed_at
		FROM lottery_draws WHERE id = $1
	`, id)
	return scanDraw(row)
}

func (s *Store) ListDueLotteryDraws(ctx context.Context, before time.Time, limit int) ([]gambling.Draw, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, draw_type, draw_at, status, prize_pool, winning_numbers, completed_at
		FROM lottery_draws WHERE status = $1 AND draw_at < $2 ORDER BY draw_at LIMIT $3
	`, string(gambling.DrawOpen), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gambling.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateLotteryTicket(ctx context.Context, t gambling.Ticket) (gambling.Ticket, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO lottery_tickets (id, user_id, draw_id, numbers, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, t.ID, t.UserID, t.DrawID, intsToPQ(t.Numbers), t.CreatedAt)
	if err != nil {
		return gambling.Ticket{}, err
	}
	return t, nil
}

// ListLotteryTickets returns tickets ordered by created_at, then id, so that
// "earliest ticketId wins" tie-breaks (§9 Open Questions) can be resolved by
// taking index 0 of the matching subset. Ticket IDs are generated with
// uuid.NewString() which is not monotonic, so the numeric ordering of the
// in-memory store's sequential IDs isn't available here; created_at stands
// in for it, with id breaking exact timestamp ties.
func (s *Store) ListLotteryTickets(ctx context.Context, drawID string) ([]gambling.Ticket, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, draw_id, numbers, created_at
		FROM lottery_tickets WHERE draw_id = $1 ORDER BY created_at, id
	`, drawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gambling.Ticket
	for rows.Next() {
		var (
			t       gambling.Ticket
			numbers pq.Int64Array
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.DrawID, &numbers, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Numbers = pqToInts(numbers)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CountUserLotteryTickets(ctx context.Context, userID, drawID string) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lottery_tickets WHERE user_id = $1 AND draw_id = $2
	`, userID, drawID).Scan(&n)
	return n, err
}

func (s *Store) TicketNumbersExist(ctx context.Context, userID, drawID string, numbers []int) (bool, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lottery_tickets WHERE user_id = $1 AND draw_id = $2 AND numbers = $3
	`, userID, drawID, intsToPQ(numbers)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
