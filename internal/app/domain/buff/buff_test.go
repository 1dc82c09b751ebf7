package buff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNewWhenNoExistingRow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	outcome, row := Resolve(nil, 1.5, time.Hour, SourceConsumable, now)
	require.Equal(t, OutcomeNew, outcome)
	require.NotNil(t, row)
	assert.Equal(t, 1.5, row.Multiplier)
	assert.Equal(t, now.Add(time.Hour), row.ExpiresAt)
	assert.True(t, row.IsActive)
}

func TestResolveUpgradeWhenIncomingMultiplierIsHigher(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Buff{Multiplier: 1.2, Source: SourceConsumable, ExpiresAt: now.Add(10 * time.Minute), IsActive: true}

	outcome, row := Resolve(existing, 1.8, time.Hour, SourceConsumable, now)
	require.Equal(t, OutcomeUpgrade, outcome)
	require.NotNil(t, row)
	assert.Equal(t, 1.8, row.Multiplier)
	assert.Equal(t, now.Add(time.Hour), row.ExpiresAt)
}

func TestResolveExtensionWhenIncomingMultiplierIsEqual(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Buff{Multiplier: 1.5, Source: SourceConsumable, ExpiresAt: now.Add(10 * time.Minute), IsActive: true}

	outcome, row := Resolve(existing, 1.5, time.Hour, SourceConsumable, now)
	require.Equal(t, OutcomeExtension, outcome)
	require.NotNil(t, row)
	assert.Equal(t, 1.5, row.Multiplier)
	// Extension stacks onto the existing expiry, not "now".
	assert.Equal(t, existing.ExpiresAt.Add(time.Hour), row.ExpiresAt)
}

func TestResolveExtensionFromAlreadyExpiredRowBasesOnNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Buff{Multiplier: 1.5, Source: SourceConsumable, ExpiresAt: now.Add(-time.Minute), IsActive: true}

	_, row := Resolve(existing, 1.5, time.Hour, SourceConsumable, now)
	require.NotNil(t, row)
	assert.Equal(t, now.Add(time.Hour), row.ExpiresAt)
}

func TestResolveNoOpWhenIncomingMultiplierIsLower(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &Buff{Multiplier: 2.0, Source: SourceConsumable, ExpiresAt: now.Add(time.Hour), IsActive: true}

	outcome, row := Resolve(existing, 1.1, time.Hour, SourceConsumable, now)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Nil(t, row)
}

func TestResolveNormalizesUnknownSourceToConsumable(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, row := Resolve(nil, 1.5, time.Hour, Source("unknown"), now)
	require.NotNil(t, row)
	assert.Equal(t, SourceConsumable, row.Source)
}

func TestAggregateMultiplierCombinesMaxPerSourceCategory(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Buff{
		{Multiplier: 1.3, Source: SourceConsumable, ExpiresAt: now.Add(time.Hour), IsActive: true},
		{Multiplier: 1.6, Source: SourceConsumable, ExpiresAt: now.Add(time.Hour), IsActive: true}, // higher consumable wins
		{Multiplier: 1.2, Source: SourceTerritory, ExpiresAt: now.Add(time.Hour), IsActive: true},
		{Multiplier: 1.5, Source: SourceTerritory, ExpiresAt: now.Add(time.Hour), IsActive: true}, // higher territory wins
		{Multiplier: 2.0, Source: SourceJuicernaut, ExpiresAt: now.Add(time.Hour), IsActive: true},
		{Multiplier: 9.9, Source: SourceConsumable, ExpiresAt: now.Add(-time.Minute), IsActive: true}, // expired, excluded
	}
	got := AggregateMultiplier(rows, now)
	assert.InDelta(t, 1.6*1.5*2.0, got, 1e-9)
}

func TestAggregateMultiplierDefaultsToOneWithNoLiveRows(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, AggregateMultiplier(nil, now))

	inactive := []Buff{{Multiplier: 5.0, Source: SourceConsumable, ExpiresAt: now.Add(time.Hour), IsActive: false}}
	assert.Equal(t, 1.0, AggregateMultiplier(inactive, now))
}

func TestAggregateMultiplierNonExpiringRowStaysLive(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Buff{{Multiplier: 1.4, Source: SourceJuicernaut, IsActive: true}} // zero ExpiresAt: never expires
	assert.InDelta(t, 1.4, AggregateMultiplier(rows, now), 1e-9)
}
