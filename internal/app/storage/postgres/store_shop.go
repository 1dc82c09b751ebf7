package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kingpin-stream/economy-core/internal/app/domain/shop"
)

// --- ShopStore --------------------------------------------------------------

// GetRotation returns the zero-value Rotation (which shop.Rotation.IsStale
// always reports as stale) when the user has never been rolled a rotation.
func (s *Store) GetRotation(ctx context.Context, userID string) (shop.Rotation, error) {
	var r shop.Rotation
	var offersJSON []byte
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT user_id, offers, rolled_at, expires_at
		FROM shop_rotations WHERE user_id = $1
	`, userID).Scan(&r.UserID, &offersJSON, &r.RolledAt, &r.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return shop.Rotation{}, nil
		}
		return shop.Rotation{}, err
	}
	if err := json.Unmarshal(offersJSON, &r.Offers); err != nil {
		return shop.Rotation{}, err
	}
	return r, nil
}

func (s *Store) UpsertRotation(ctx context.Context, r shop.Rotation) (shop.Rotation, error) {
	offersJSON, err := json.Marshal(r.Offers)
	if err != nil {
		return shop.Rotation{}, err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO shop_rotations (user_id, offers, rolled_at, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET
			offers = EXCLUDED.offers,
			rolled_at = EXCLUDED.rolled_at,
			expires_at = EXCLUDED.expires_at
	`, r.UserID, offersJSON, r.RolledAt, r.ExpiresAt)
	if err != nil {
		return shop.Rotation{}, err
	}
	return r, nil
}
