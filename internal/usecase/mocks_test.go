package usecase

import (
	"context"
	"sync"

	"github.com/stellarperps/perpmon/internal/domain"
)

// mockPositionRepo is an in-memory domain.PositionRepository.
type mockPositionRepo struct {
	mu        sync.Mutex
	saved     map[string]*domain.Position
	updateErr error
}

func newMockPositionRepo() *mockPositionRepo {
	return &mockPositionRepo{saved: make(map[string]*domain.Position)}
}

func (m *mockPositionRepo) SavePosition(ctx context.Context, pos *domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pos
	m.saved[pos.ID] = &cp
	return nil
}

func (m *mockPositionRepo) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pos
	m.saved[pos.ID] = &cp
	return nil
}

func (m *mockPositionRepo) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.saved[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPositionRepo) ListActivePositions(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Position
	for _, p := range m.saved {
		if !p.IsLiquidated {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockPositionRepo) ListPositionsByOwner(ctx context.Context, owner string) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Position
	for _, p := range m.saved {
		if p.Owner == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockEventRepo records events in memory.
type mockEventRepo struct {
	mu           sync.Mutex
	liquidations []*domain.LiquidationEvent
	alerts       []*domain.PriceAlert
	funding      []*domain.FundingSample
}

func (m *mockEventRepo) SaveLiquidationEvent(ctx context.Context, event *domain.LiquidationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liquidations = append(m.liquidations, event)
	return nil
}

func (m *mockEventRepo) ListLiquidationEvents(ctx context.Context, limit int) ([]*domain.LiquidationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.LiquidationEvent{}, m.liquidations...), nil
}

func (m *mockEventRepo) CountLiquidationEvents(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.liquidations), nil
}

func (m *mockEventRepo) SavePriceAlert(ctx context.Context, alert *domain.PriceAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockEventRepo) ListPriceAlerts(ctx context.Context, limit int) ([]*domain.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.PriceAlert{}, m.alerts...), nil
}

func (m *mockEventRepo) SaveFundingSample(ctx context.Context, sample *domain.FundingSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funding = append(m.funding, sample)
	return nil
}

func (m *mockEventRepo) ListFundingSamples(ctx context.Context, asset string, limit int) ([]*domain.FundingSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.FundingSample{}, m.funding...), nil
}

// mockNotifier records deliveries; err simulates a failing endpoint.
type mockNotifier struct {
	mu           sync.Mutex
	err          error
	liquidations []*domain.LiquidationEvent
	alerts       []*domain.PriceAlert
	funding      []*domain.FundingSample
}

func (m *mockNotifier) NotifyLiquidation(ctx context.Context, event *domain.LiquidationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.liquidations = append(m.liquidations, event)
	return nil
}

func (m *mockNotifier) NotifyPriceAlert(ctx context.Context, alert *domain.PriceAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockNotifier) NotifyFundingRate(ctx context.Context, sample *domain.FundingSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.funding = append(m.funding, sample)
	return nil
}

func (m *mockNotifier) liquidationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.liquidations)
}

func (m *mockNotifier) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}
