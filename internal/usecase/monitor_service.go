package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/stellarperps/perpmon/internal/domain"
	"go.uber.org/zap"
)

// DefaultPriceAlertThreshold emits a price alert when a single update moves
// the price by more than 5%.
const DefaultPriceAlertThreshold = 0.05

const defaultNotifyTimeout = 10 * time.Second

// MonitorService is the single ingestion point for price updates. Each update
// is processed synchronously to completion: prices and PnL are applied to the
// store, breached positions are marked liquidated and events are persisted.
// Only notification delivery leaves the synchronous path, on a goroutine with
// a bounded timeout.
type MonitorService struct {
	store     *PositionStore
	evaluator *LiquidationEvaluator
	events    domain.EventRepository
	notifier  domain.Notifier
	logger    *zap.Logger

	alertThreshold float64
	notifyTimeout  time.Duration

	mu         sync.RWMutex
	lastPrices map[string]float64

	notifyWG sync.WaitGroup
}

func NewMonitorService(
	store *PositionStore,
	evaluator *LiquidationEvaluator,
	events domain.EventRepository,
	notifier domain.Notifier,
	alertThreshold float64,
	logger *zap.Logger,
) *MonitorService {
	if alertThreshold <= 0 {
		alertThreshold = DefaultPriceAlertThreshold
	}
	return &MonitorService{
		store:          store,
		evaluator:      evaluator,
		events:         events,
		notifier:       notifier,
		logger:         logger,
		alertThreshold: alertThreshold,
		notifyTimeout:  defaultNotifyTimeout,
		lastPrices:     make(map[string]float64),
	}
}

// LastPrice returns the last ingested price for an asset, 0 if none yet.
func (m *MonitorService) LastPrice(asset string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPrices[asset]
}

// ProcessPriceUpdate applies one (asset, price) tuple: updates every active
// position on the asset, liquidates the ones past the threshold and emits a
// price alert when the move from prevPrice exceeds the alert threshold.
// Identical consecutive prices are re-evaluated, not deduplicated.
//
// prevPrice may be 0 when the feed carries no previous value; alerting is
// skipped in that case. timestamp is epoch milliseconds from the feed.
func (m *MonitorService) ProcessPriceUpdate(
	ctx context.Context,
	asset string,
	price, prevPrice float64,
	timestamp int64,
) ([]*domain.LiquidationEvent, error) {
	if asset == "" {
		return nil, fmt.Errorf("price update with empty asset")
	}
	if price <= 0 {
		return nil, fmt.Errorf("non-positive price %v for %s", price, asset)
	}

	m.mu.Lock()
	m.lastPrices[asset] = price
	m.mu.Unlock()

	var liquidations []*domain.LiquidationEvent
	for _, pos := range m.store.ApplyPrice(asset, price) {
		if !m.evaluator.ShouldLiquidate(pos) {
			continue
		}

		changed, err := m.store.MarkLiquidated(ctx, pos.ID)
		if err != nil {
			m.logger.Error("failed to persist liquidation",
				zap.String("position_id", pos.ID), zap.Error(err))
		}
		if !changed {
			continue
		}

		event := &domain.LiquidationEvent{
			PositionID:       pos.ID,
			User:             pos.Owner,
			Asset:            pos.Asset,
			LiquidationPrice: price,
			Timestamp:        time.Now().UnixMilli(),
			Reason:           domain.ReasonMarginCall,
		}
		if err := m.events.SaveLiquidationEvent(ctx, event); err != nil {
			m.logger.Error("failed to save liquidation event",
				zap.String("position_id", pos.ID), zap.Error(err))
		}

		m.logger.Warn("position liquidated",
			zap.String("position_id", pos.ID),
			zap.String("asset", pos.Asset),
			zap.Float64("price", price),
			zap.Float64("pnl", pos.UnrealizedPnL))

		m.dispatchLiquidation(event)
		liquidations = append(liquidations, event)
	}

	if prevPrice > 0 {
		change := math.Abs(price-prevPrice) / prevPrice
		if change > m.alertThreshold {
			alert := &domain.PriceAlert{
				Asset:     asset,
				Price:     price,
				PrevPrice: prevPrice,
				ChangePct: change,
				Timestamp: timestamp,
			}
			if err := m.events.SavePriceAlert(ctx, alert); err != nil {
				m.logger.Error("failed to save price alert",
					zap.String("asset", asset), zap.Error(err))
			}
			m.dispatchPriceAlert(alert)
		}
	}

	return liquidations, nil
}

// Stats combines the live store aggregates with the durable liquidation
// count.
func (m *MonitorService) Stats(ctx context.Context) (domain.MonitorStats, error) {
	stats := m.store.Stats()
	count, err := m.events.CountLiquidationEvents(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count liquidation events: %w", err)
	}
	stats.LiquidatedTotal = count
	return stats, nil
}

// Close waits for in-flight notification deliveries to finish.
func (m *MonitorService) Close() {
	m.notifyWG.Wait()
}

// Delivery is fire-and-forget: a failure is logged and never retried; the
// liquidation is already committed locally.
func (m *MonitorService) dispatchLiquidation(event *domain.LiquidationEvent) {
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
		defer cancel()
		if err := m.notifier.NotifyLiquidation(ctx, event); err != nil {
			m.logger.Error("liquidation notification failed",
				zap.String("position_id", event.PositionID), zap.Error(err))
		}
	}()
}

func (m *MonitorService) dispatchPriceAlert(alert *domain.PriceAlert) {
	m.notifyWG.Add(1)
	go func() {
		defer m.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.notifyTimeout)
		defer cancel()
		if err := m.notifier.NotifyPriceAlert(ctx, alert); err != nil {
			m.logger.Error("price alert notification failed",
				zap.String("asset", alert.Asset), zap.Error(err))
		}
	}()
}
