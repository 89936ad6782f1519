package domain

import "context"

// PositionRepository defines durable storage for positions. The in-memory
// store is authoritative at runtime; the repository persists creations and
// terminal liquidations and reloads the active set on startup.
type PositionRepository interface {
	SavePosition(ctx context.Context, pos *Position) error
	UpdatePosition(ctx context.Context, pos *Position) error
	GetPosition(ctx context.Context, id string) (*Position, error)
	ListActivePositions(ctx context.Context) ([]*Position, error)
	ListPositionsByOwner(ctx context.Context, owner string) ([]*Position, error)
}

// EventRepository defines storage for emitted events.
type EventRepository interface {
	SaveLiquidationEvent(ctx context.Context, event *LiquidationEvent) error
	ListLiquidationEvents(ctx context.Context, limit int) ([]*LiquidationEvent, error)
	CountLiquidationEvents(ctx context.Context) (int, error)

	SavePriceAlert(ctx context.Context, alert *PriceAlert) error
	ListPriceAlerts(ctx context.Context, limit int) ([]*PriceAlert, error)

	SaveFundingSample(ctx context.Context, sample *FundingSample) error
	ListFundingSamples(ctx context.Context, asset string, limit int) ([]*FundingSample, error)
}

// Notifier delivers events to an external channel. Delivery is best-effort:
// callers log failures and never retry or roll back state.
type Notifier interface {
	NotifyLiquidation(ctx context.Context, event *LiquidationEvent) error
	NotifyPriceAlert(ctx context.Context, alert *PriceAlert) error
	NotifyFundingRate(ctx context.Context, sample *FundingSample) error
}

// PriceFeed is an outbound price source (REST poller or websocket stream).
// Implementations invoke the registered callback once per received update.
type PriceFeed interface {
	OnPriceUpdate(callback func(asset string, price float64, timestamp int64))
	Subscribe(assets []string) error
	Close() error
}
