package postgres

import (
	"context"
	"time"

	"github.com/kingpin-stream/economy-core/internal/app/domain/notification"
)

// --- NotificationStore -------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO user_notifications (id, user_id, kind, message, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, n.ID, n.UserID, string(n.Kind), n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, kind, message, read, created_at
		FROM user_notifications WHERE user_id = $1 AND read = false
		ORDER BY created_at ASC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE user_notifications SET read = true WHERE id = $1`, id)
	return err
}

// PurgeNotificationsBefore deletes notifications older than the configured
// retention window (§6 Scheduler "notification retention").
func (s *Store) PurgeNotificationsBefore(ctx context.Context, before time.Time) (int, error) {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM user_notifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
