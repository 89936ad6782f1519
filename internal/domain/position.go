package domain

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position represents a leveraged perpetual position under monitoring.
type Position struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	Asset            string    `json:"asset"`
	Side             Side      `json:"side"`
	NotionalSize     float64   `json:"notional_size"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	Leverage         int       `json:"leverage"`
	Margin           float64   `json:"margin"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	LiquidationPrice float64   `json:"liquidation_price"`
	IsLiquidated     bool      `json:"is_liquidated"`
	CreatedAt        time.Time `json:"created_at"`
}

const ReasonMarginCall = "margin_call"

// LiquidationEvent is emitted exactly once when a position crosses the
// liquidation threshold. Field names follow the outbound webhook contract.
type LiquidationEvent struct {
	PositionID       string  `json:"positionId"`
	User             string  `json:"user"`
	Asset            string  `json:"asset"`
	LiquidationPrice float64 `json:"liquidationPrice"`
	Timestamp        int64   `json:"timestamp"`
	Reason           string  `json:"reason"`
}

// PriceAlert is emitted when a single update moves an asset price by more
// than the configured percentage.
type PriceAlert struct {
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	PrevPrice float64 `json:"prevPrice"`
	ChangePct float64 `json:"changePct"`
	Timestamp int64   `json:"timestamp"`
}

// FundingSample is one computed funding rate observation for an asset.
type FundingSample struct {
	Asset     string  `json:"asset"`
	Rate      float64 `json:"rate"`
	SpotPrice float64 `json:"spotPrice"`
	MarkPrice float64 `json:"markPrice"`
	Timestamp int64   `json:"timestamp"`
}

// MonitorStats aggregates the current state of the monitor.
type MonitorStats struct {
	ActivePositions int     `json:"active_positions"`
	LiquidatedTotal int     `json:"liquidated_total"`
	TotalNotional   float64 `json:"total_notional"`
	TotalMargin     float64 `json:"total_margin"`
}
