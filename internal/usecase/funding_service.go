package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stellarperps/perpmon/internal/domain"
	"go.uber.org/zap"
)

const (
	// BaseFundingRate is the 0.01% floor every funding interval carries.
	BaseFundingRate = 0.0001

	// DefaultFundingVolatility feeds the volatility adjustment when no
	// measured value is configured.
	DefaultFundingVolatility = 0.1
)

// CalculateFundingRate derives a funding rate from the spot/mark premium:
// base rate + 10% of the premium + a small volatility adjustment.
func CalculateFundingRate(spotPrice, markPrice, volatility float64) float64 {
	premium := (markPrice - spotPrice) / spotPrice
	return BaseFundingRate + premium*0.1 + volatility*0.001
}

// FundingService periodically computes funding rates for the assets under
// monitoring. Spot prices come from the monitor's ingested feed; mark prices
// come from the exchange stream when one is connected, falling back to spot
// (zero premium) otherwise.
type FundingService struct {
	monitor  *MonitorService
	events   domain.EventRepository
	notifier domain.Notifier
	logger   *zap.Logger

	volatility float64
	interval   time.Duration

	mu         sync.RWMutex
	markPrices map[string]float64
}

func NewFundingService(
	monitor *MonitorService,
	events domain.EventRepository,
	notifier domain.Notifier,
	volatility float64,
	interval time.Duration,
	logger *zap.Logger,
) *FundingService {
	if volatility <= 0 {
		volatility = DefaultFundingVolatility
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &FundingService{
		monitor:    monitor,
		events:     events,
		notifier:   notifier,
		logger:     logger,
		volatility: volatility,
		interval:   interval,
		markPrices: make(map[string]float64),
	}
}

// SetMarkPrice records the latest mark price seen on the exchange stream.
func (f *FundingService) SetMarkPrice(asset string, price float64) {
	if price <= 0 {
		return
	}
	f.mu.Lock()
	f.markPrices[asset] = price
	f.mu.Unlock()
}

func (f *FundingService) markPrice(asset string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.markPrices[asset]
}

// ComputeOnce produces one funding sample per asset with an active position
// and a known spot price, persists them and dispatches notifications.
func (f *FundingService) ComputeOnce(ctx context.Context) []*domain.FundingSample {
	var samples []*domain.FundingSample
	for _, asset := range f.monitor.store.ActiveAssets() {
		spot := f.monitor.LastPrice(asset)
		if spot <= 0 {
			continue
		}
		mark := f.markPrice(asset)
		if mark <= 0 {
			mark = spot
		}

		sample := &domain.FundingSample{
			Asset:     asset,
			Rate:      CalculateFundingRate(spot, mark, f.volatility),
			SpotPrice: spot,
			MarkPrice: mark,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := f.events.SaveFundingSample(ctx, sample); err != nil {
			f.logger.Error("failed to save funding sample",
				zap.String("asset", asset), zap.Error(err))
		}
		if err := f.notifier.NotifyFundingRate(ctx, sample); err != nil {
			f.logger.Error("funding notification failed",
				zap.String("asset", asset), zap.Error(err))
		}
		samples = append(samples, sample)
	}
	return samples
}

// Run recomputes funding on the configured interval until the context is
// cancelled.
func (f *FundingService) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.ComputeOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
