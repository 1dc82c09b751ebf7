package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/internal/app/domain/player"
	"github.com/kingpin-stream/economy-core/internal/app/platform/clock"
	notificationsvc "github.com/kingpin-stream/economy-core/internal/app/services/notification"
	"github.com/kingpin-stream/economy-core/internal/app/storage/memory"
)

func newTestMergeService(t *testing.T) (*Service, *memory.Memory, *clock.Frozen) {
	t.Helper()
	store := memory.New()
	clk := clock.NewFrozen(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	notifications := notificationsvc.New(store, clk, nil)
	return New(store, clk, notifications), store, clk
}

// TestExecuteMergesDistinctPlatformIDsWithoutDuplication covers the account
// merge dedup scenario: primary and secondary hold different platform
// identifiers, so both survive onto the primary with no collision, while
// identifiers the primary already has are left untouched on the secondary.
func TestExecuteMergesDistinctPlatformIDsWithoutDuplication(t *testing.T) {
	svc, store, _ := newTestMergeService(t)
	ctx := context.Background()

	primary, err := store.CreateUser(ctx, player.User{
		Kick: "primary-kick", Wealth: 500, XP: 100, Tokens: 5, Bonds: 2, CheckinStreak: 3,
	})
	require.NoError(t, err)
	secondary, err := store.CreateUser(ctx, player.User{
		Twitch: "secondary-twitch", Discord: "secondary-discord", Wealth: 300, XP: 50, Tokens: 1, Bonds: 4, CheckinStreak: 7,
	})
	require.NoError(t, err)

	projection, err := svc.Execute(ctx, primary.ID, secondary.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(800), projection.CombinedWealth)
	assert.Equal(t, int64(150), projection.CombinedXP)
	assert.Equal(t, int64(6), projection.CombinedTokens)
	assert.Equal(t, int64(6), projection.CombinedBonds)
	assert.Equal(t, int64(7), projection.CombinedStreak)

	updatedPrimary, err := store.GetUser(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary-kick", updatedPrimary.Kick)
	assert.Equal(t, "secondary-twitch", updatedPrimary.Twitch)
	assert.Equal(t, "secondary-discord", updatedPrimary.Discord)
	assert.Equal(t, int64(800), updatedPrimary.Wealth)
	assert.False(t, updatedPrimary.IsMerged())

	updatedSecondary, err := store.GetUser(ctx, secondary.ID)
	require.NoError(t, err)
	assert.True(t, updatedSecondary.IsMerged())
	assert.Equal(t, primary.ID, updatedSecondary.MergedIntoUserID)
	assert.Equal(t, int64(0), updatedSecondary.Wealth)
	assert.Equal(t, int64(0), updatedSecondary.XP)
	// Platform IDs migrated to primary are cleared on the tombstoned row.
	assert.Empty(t, updatedSecondary.Twitch)
	assert.Empty(t, updatedSecondary.Discord)

	notifications, err := store.ListUnreadNotifications(ctx, primary.ID, 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

// TestExecuteKeepsPrimaryPlatformIDOnCollision covers the case both accounts
// hold the same kind of platform identifier: the primary's own value wins
// and the secondary's is simply dropped, never overwriting the primary.
func TestExecuteKeepsPrimaryPlatformIDOnCollision(t *testing.T) {
	svc, store, _ := newTestMergeService(t)
	ctx := context.Background()

	primary, err := store.CreateUser(ctx, player.User{Kick: "primary-kick", Wealth: 100})
	require.NoError(t, err)
	secondary, err := store.CreateUser(ctx, player.User{Kick: "secondary-kick", Wealth: 50})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, primary.ID, secondary.ID)
	require.NoError(t, err)

	updatedPrimary, err := store.GetUser(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary-kick", updatedPrimary.Kick)
}

func TestExecuteRejectsSelfMerge(t *testing.T) {
	svc, store, _ := newTestMergeService(t)
	ctx := context.Background()
	u, err := store.CreateUser(ctx, player.User{Kick: "solo"})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, u.ID, u.ID)
	var serr *apperrors.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, apperrors.Policy, serr.Kind)
}

func TestExecuteRejectsAlreadyMergedSecondary(t *testing.T) {
	svc, store, _ := newTestMergeService(t)
	ctx := context.Background()

	a, err := store.CreateUser(ctx, player.User{Kick: "a"})
	require.NoError(t, err)
	b, err := store.CreateUser(ctx, player.User{Kick: "b"})
	require.NoError(t, err)
	c, err := store.CreateUser(ctx, player.User{Kick: "c"})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, c.ID, b.ID)
	var serr *apperrors.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, apperrors.Conflict, serr.Kind)
}

func TestPreviewDoesNotMutateState(t *testing.T) {
	svc, store, _ := newTestMergeService(t)
	ctx := context.Background()

	primary, err := store.CreateUser(ctx, player.User{Kick: "preview-primary", Wealth: 100})
	require.NoError(t, err)
	secondary, err := store.CreateUser(ctx, player.User{Kick: "preview-secondary", Wealth: 200})
	require.NoError(t, err)

	projection, err := svc.Preview(ctx, primary.ID, secondary.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), projection.CombinedWealth)

	unchangedPrimary, err := store.GetUser(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), unchangedPrimary.Wealth)
	unchangedSecondary, err := store.GetUser(ctx, secondary.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), unchangedSecondary.Wealth)
	assert.False(t, unchangedSecondary.IsMerged())
}
