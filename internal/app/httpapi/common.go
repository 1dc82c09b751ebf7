package httpapi

import (
	"context"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/economy/formula"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
)

// tierMultiplier loads the authenticated player and returns the reward/risk
// multiplier for their current tier (§4.3 Formulas, TierMultiplier), the
// same derivation ingress.Service applies before dispatching a gambling
// command.
func (h *handler) tierMultiplier(ctx context.Context, userID string) (float64, player.User, error) {
	user, err := h.deps.Store.GetUser(ctx, userID)
	if err != nil {
		return 0, player.User{}, apperrors.NewNotFound("user", userID)
	}
	return formula.TierMultiplier(user.Tier()), user, nil
}
