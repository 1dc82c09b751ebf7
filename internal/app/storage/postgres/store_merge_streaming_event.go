package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/gameevent"
	"github.com/kingpin-stream/economy-core/internal/app/domain/merge"
	"github.com/kingpin-stream/economy-core/internal/app/domain/streaming"
)

// --- MergeStore --------------------------------------------------------

// RecordMerge tombstones the secondary account: zeroes its spendable
// balances and stamps merged_into_user_id/merged_at/merge_audit_log (§4.12
// step 7, soft-delete resolution recorded in DESIGN.md).
func (s *Store) RecordMerge(ctx context.Context, secondaryUserID string, snapshot merge.AuditSnapshot, primaryUserID string, mergedAt time.Time) error {
	auditJSON, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE users SET merged_into_user_id = $2, merged_at = $3, merge_audit_log = $4,
			wealth = 0, xp = 0, tokens = 0, bonds = 0
		WHERE id = $1
	`, secondaryUserID, primaryUserID, mergedAt, string(auditJSON))
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReassignUserRows moves the secondary account's items and consumable
// stock onto the primary account, merging stock quantities where the
// primary already owns the same consumable (§4.12 step 4-5).
func (s *Store) ReassignUserRows(ctx context.Context, secondaryUserID, primaryUserID string) error {
	if _, err := s.q(ctx).ExecContext(ctx, `
		UPDATE items SET user_id = $2 WHERE user_id = $1
	`, secondaryUserID, primaryUserID); err != nil {
		return err
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT consumable_id, quantity FROM user_consumables WHERE user_id = $1
	`, secondaryUserID)
	if err != nil {
		return err
	}
	type stock struct {
		consumableID string
		quantity     int64
	}
	var secondary []stock
	for rows.Next() {
		var st stock
		if err := rows.Scan(&st.consumableID, &st.quantity); err != nil {
			rows.Close()
			return err
		}
		secondary = append(secondary, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, st := range secondary {
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO user_consumables (user_id, consumable_id, quantity)
			VALUES ($1,$2,$3)
			ON CONFLICT (user_id, consumable_id) DO UPDATE
			SET quantity = user_consumables.quantity + EXCLUDED.quantity
		`, primaryUserID, st.consumableID, st.quantity); err != nil {
			return err
		}
	}
	_, err = s.q(ctx).ExecContext(ctx, `DELETE FROM user_consumables WHERE user_id = $1`, secondaryUserID)
	return err
}

// --- StreamingStore --------------------------------------------------------

func (s *Store) GetSession(ctx context.Context, channelID string) (streaming.Session, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT platform_channel_id, started_at, ended_at FROM streaming_sessions WHERE platform_channel_id = $1
	`, channelID)
	var (
		sess      streaming.Session
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	err := row.Scan(&sess.PlatformChannelID, &startedAt, &endedAt)
	if err == sql.ErrNoRows {
		return streaming.Session{PlatformChannelID: channelID}, nil
	}
	if err != nil {
		return streaming.Session{}, err
	}
	sess.StartedAt = fromNullTime(startedAt)
	sess.EndedAt = fromNullTime(endedAt)
	return sess, nil
}

func (s *Store) UpsertSession(ctx context.Context, sess streaming.Session) (streaming.Session, error) {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO streaming_sessions (platform_channel_id, started_at, ended_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (platform_channel_id) DO UPDATE SET started_at = $2, ended_at = $3
	`, sess.PlatformChannelID, toNullTime(sess.StartedAt), toNullTime(sess.EndedAt))
	if err != nil {
		return streaming.Session{}, err
	}
	return sess, nil
}

// --- GameEventStore --------------------------------------------------------

func (s *Store) AppendEvent(ctx context.Context, e gameevent.Event) (gameevent.Event, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return gameevent.Event{}, err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO game_events (id, user_id, kind, wealth_delta, xp_delta, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.UserID, string(e.Kind), e.WealthDelta, e.XPDelta, string(details), e.CreatedAt)
	if err != nil {
		return gameevent.Event{}, err
	}
	return e, nil
}

func (s *Store) ListEventsForUser(ctx context.Context, userID string, limit int) ([]gameevent.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, kind, wealth_delta, xp_delta, details, created_at
		FROM game_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gameevent.Event
	for rows.Next() {
		var (
			e       gameevent.Event
			details string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.WealthDelta, &e.XPDelta, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- IdempotenceStore --------------------------------------------------------

// MarkProcessed inserts (source, sourceEventID) into processed_webhook_events
// and reports whether this call performed the insert (§4.14 ingress
// idempotence: a unique constraint on (source, source_event_id) makes a
// retry's INSERT a no-op, detected via RowsAffected).
func (s *Store) MarkProcessed(ctx context.Context, source, sourceEventID string) (bool, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO processed_webhook_events (source, source_event_id, processed_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (source, source_event_id) DO NOTHING
	`, source, sourceEventID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
