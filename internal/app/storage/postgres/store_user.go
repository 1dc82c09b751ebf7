package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
)

func (s *Store) CreateUser(ctx context.Context, u player.User) (player.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO users (
			id, kick, twitch, discord, wealth, xp, level, tokens, tokens_earned_today,
			last_token_reset, bonds, last_bond_conversion, checkin_streak, total_play_count,
			wins, losses, faction_id, merged_into_user_id, merged_at, merge_audit_log, banned,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, u.ID, toNullString(u.Kick), toNullString(u.Twitch), toNullString(u.Discord),
		u.Wealth, u.XP, u.Level, u.Tokens, u.TokensEarnedToday, toNullTime(u.LastTokenReset),
		u.Bonds, toNullTime(u.LastBondConversion), u.CheckinStreak, u.TotalPlayCount,
		u.Wins, u.Losses, toNullString(u.FactionID), toNullString(u.MergedIntoUserID),
		toNullTime(u.MergedAt), toNullString(u.MergeAuditLog), u.Banned, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return player.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u player.User) (player.User, error) {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE users SET
			kick = $2, twitch = $3, discord = $4, wealth = $5, xp = $6, level = $7,
			tokens = $8, tokens_earned_today = $9, last_token_reset = $10, bonds = $11,
			last_bond_conversion = $12, checkin_streak = $13, total_play_count = $14,
			wins = $15, losses = $16, faction_id = $17, merged_into_user_id = $18,
			merged_at = $19, merge_audit_log = $20, banned = $21, updated_at = $22
		WHERE id = $1
	`, u.ID, toNullString(u.Kick), toNullString(u.Twitch), toNullString(u.Discord),
		u.Wealth, u.XP, u.Level, u.Tokens, u.TokensEarnedToday, toNullTime(u.LastTokenReset),
		u.Bonds, toNullTime(u.LastBondConversion), u.CheckinStreak, u.TotalPlayCount,
		u.Wins, u.Losses, toNullString(u.FactionID), toNullString(u.MergedIntoUserID),
		toNullTime(u.MergedAt), toNullString(u.MergeAuditLog), u.Banned, u.UpdatedAt)
	if err != nil {
		return player.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return player.User{}, sql.ErrNoRows
	}
	return u, nil
}

const userColumns = `id, kick, twitch, discord, wealth, xp, level, tokens, tokens_earned_today,
	last_token_reset, bonds, last_bond_conversion, checkin_streak, total_play_count,
	wins, losses, faction_id, merged_into_user_id, merged_at, merge_audit_log, banned,
	created_at, updated_at`

func scanUser(sc rowScanner) (player.User, error) {
	var (
		u                                       player.User
		kick, twitch, discord                   sql.NullString
		lastTokenReset, lastBondConversion      sql.NullTime
		factionID, mergedInto, mergeAuditLog    sql.NullString
		mergedAt                                sql.NullTime
	)
	if err := sc.Scan(&u.ID, &kick, &twitch, &discord, &u.Wealth, &u.XP, &u.Level,
		&u.Tokens, &u.TokensEarnedToday, &lastTokenReset, &u.Bonds, &lastBondConversion,
		&u.CheckinStreak, &u.TotalPlayCount, &u.Wins, &u.Losses, &factionID,
		&mergedInto, &mergedAt, &mergeAuditLog, &u.Banned, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return player.User{}, err
	}
	u.Kick, u.Twitch, u.Discord = fromNullString(kick), fromNullString(twitch), fromNullString(discord)
	u.LastTokenReset = fromNullTime(lastTokenReset)
	u.LastBondConversion = fromNullTime(lastBondConversion)
	u.FactionID = fromNullString(factionID)
	u.MergedIntoUserID = fromNullString(mergedInto)
	u.MergedAt = fromNullTime(mergedAt)
	u.MergeAuditLog = fromNullString(mergeAuditLog)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (player.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *Store) GetUserByPlatformID(ctx context.Context, platform, platformID string) (player.User, error) {
	col := map[string]string{"kick": "kick", "twitch": "twitch", "discord": "discord"}[platform]
	if col == "" {
		return player.User{}, sql.ErrNoRows
	}
	row := s.q(ctx).QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+col+" = $1", platformID)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]player.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []player.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// LockUser acquires a row lock via SELECT ... FOR UPDATE; only meaningful
// inside a transaction opened by WithTx (§5).
func (s *Store) LockUser(ctx context.Context, id string) (player.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
	return scanUser(row)
}

// LockUsersOrdered locks two user rows in ascending id order to avoid
// deadlock on cross-user paths such as robbery (§5).
func (s *Store) LockUsersOrdered(ctx context.Context, idA, idB string) (player.User, player.User, error) {
	first, second := idA, idB
	swapped := false
	if second < first {
		first, second = second, first
		swapped = true
	}
	a, err := s.LockUser(ctx, first)
	if err != nil {
		return player.User{}, player.User{}, err
	}
	b, err := s.LockUser(ctx, second)
	if err != nil {
		return player.User{}, player.User{}, err
	}
	if swapped {
		return b, a, nil
	}
	return a, b, nil
}
