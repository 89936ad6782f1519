package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarperps/perpmon/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPosition(id string) *domain.Position {
	return &domain.Position{
		ID:               id,
		Owner:            "GABC",
		Asset:            "XLM/USD",
		Side:             domain.SideLong,
		NotionalSize:     200,
		EntryPrice:       100,
		CurrentPrice:     100,
		Leverage:         10,
		Margin:           20,
		LiquidationPrice: 90,
		CreatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPositionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := testPosition("pos-1")
	require.NoError(t, store.SavePosition(ctx, pos))

	got, err := store.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, pos.Owner, got.Owner)
	assert.Equal(t, pos.Asset, got.Asset)
	assert.Equal(t, pos.Side, got.Side)
	assert.Equal(t, pos.NotionalSize, got.NotionalSize)
	assert.Equal(t, pos.LiquidationPrice, got.LiquidationPrice)
	assert.False(t, got.IsLiquidated)
	assert.True(t, pos.CreatedAt.Equal(got.CreatedAt))
}

func TestGetPosition_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetPosition(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestUpdatePosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pos := testPosition("pos-1")
	require.NoError(t, store.SavePosition(ctx, pos))

	pos.CurrentPrice = 89
	pos.UnrealizedPnL = -22
	pos.IsLiquidated = true
	require.NoError(t, store.UpdatePosition(ctx, pos))

	got, err := store.GetPosition(ctx, "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 89.0, got.CurrentPrice)
	assert.Equal(t, -22.0, got.UnrealizedPnL)
	assert.True(t, got.IsLiquidated)
}

func TestListActivePositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active := testPosition("pos-1")
	require.NoError(t, store.SavePosition(ctx, active))

	liquidated := testPosition("pos-2")
	liquidated.IsLiquidated = true
	require.NoError(t, store.SavePosition(ctx, liquidated))

	got, err := store.ListActivePositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pos-1", got[0].ID)
}

func TestListPositionsByOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine := testPosition("pos-1")
	require.NoError(t, store.SavePosition(ctx, mine))

	other := testPosition("pos-2")
	other.Owner = "GDEF"
	require.NoError(t, store.SavePosition(ctx, other))

	got, err := store.ListPositionsByOwner(ctx, "GABC")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GABC", got[0].Owner)
}

func TestLiquidationEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, price := range []float64{89, 88, 87} {
		require.NoError(t, store.SaveLiquidationEvent(ctx, &domain.LiquidationEvent{
			PositionID:       "pos-1",
			User:             "GABC",
			Asset:            "XLM/USD",
			LiquidationPrice: price,
			Timestamp:        1700000000000 + int64(i),
			Reason:           domain.ReasonMarginCall,
		}))
	}

	count, err := store.CountLiquidationEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Newest first, limit applies.
	events, err := store.ListLiquidationEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 87.0, events[0].LiquidationPrice)
	assert.Equal(t, 88.0, events[1].LiquidationPrice)
	assert.Equal(t, domain.ReasonMarginCall, events[0].Reason)
}

func TestPriceAlerts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SavePriceAlert(ctx, &domain.PriceAlert{
		Asset:     "XLM/USD",
		Price:     106,
		PrevPrice: 100,
		ChangePct: 0.06,
		Timestamp: 1700000000000,
	}))

	alerts, err := store.ListPriceAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "XLM/USD", alerts[0].Asset)
	assert.InDelta(t, 0.06, alerts[0].ChangePct, 1e-12)
}

func TestFundingSamples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveFundingSample(ctx, &domain.FundingSample{
		Asset: "XLM/USD", Rate: 0.0002, SpotPrice: 100, MarkPrice: 100.1, Timestamp: 1,
	}))
	require.NoError(t, store.SaveFundingSample(ctx, &domain.FundingSample{
		Asset: "BTC/USD", Rate: 0.0001, SpotPrice: 50000, MarkPrice: 50000, Timestamp: 2,
	}))

	all, err := store.ListFundingSamples(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := store.ListFundingSamples(ctx, "XLM/USD", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "XLM/USD", filtered[0].Asset)
	assert.InDelta(t, 0.0002, filtered[0].Rate, 1e-12)
}
