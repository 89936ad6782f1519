package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellarperps/perpmon/internal/domain"
)

// PositionStore owns the lifecycle of all known positions. The in-memory map
// is the runtime source of truth; creations and liquidations are written
// through to the repository so the active set survives a restart.
//
// Liquidated positions stay in the map (queryable by id and owner) but are
// excluded from evaluation.
type PositionStore struct {
	repo domain.PositionRepository

	mu        sync.RWMutex
	positions map[string]*domain.Position
}

func NewPositionStore(repo domain.PositionRepository) *PositionStore {
	return &PositionStore{
		repo:      repo,
		positions: make(map[string]*domain.Position),
	}
}

// Load populates the in-memory map with the active positions persisted by a
// previous run.
func (s *PositionStore) Load(ctx context.Context) error {
	active, err := s.repo.ListActivePositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active positions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range active {
		s.positions[p.ID] = p
	}
	return nil
}

// Create validates parameters, computes the liquidation price and inserts a
// new position. IDs are UUIDs so same-millisecond creations never collide.
func (s *PositionStore) Create(
	ctx context.Context,
	owner, asset string,
	side domain.Side,
	notionalSize, entryPrice float64,
	leverage int,
	margin float64,
) (*domain.Position, error) {
	if owner == "" || asset == "" {
		return nil, fmt.Errorf("%w: owner and asset are required", domain.ErrInvalidParams)
	}
	if side != domain.SideLong && side != domain.SideShort {
		return nil, fmt.Errorf("%w: side must be long or short", domain.ErrInvalidParams)
	}
	if entryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", domain.ErrInvalidParams)
	}
	if margin <= 0 {
		return nil, fmt.Errorf("%w: margin must be positive", domain.ErrInvalidParams)
	}
	if notionalSize <= 0 {
		return nil, fmt.Errorf("%w: notional size must be positive", domain.ErrInvalidParams)
	}
	if leverage < 1 {
		return nil, fmt.Errorf("%w: leverage must be at least 1", domain.ErrInvalidParams)
	}

	pos := &domain.Position{
		ID:               uuid.NewString(),
		Owner:            owner,
		Asset:            asset,
		Side:             side,
		NotionalSize:     notionalSize,
		EntryPrice:       entryPrice,
		CurrentPrice:     entryPrice,
		Leverage:         leverage,
		Margin:           margin,
		UnrealizedPnL:    0,
		LiquidationPrice: LiquidationPrice(side, entryPrice, margin, notionalSize),
		IsLiquidated:     false,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("failed to save position: %w", err)
	}

	s.mu.Lock()
	s.positions[pos.ID] = pos
	s.mu.Unlock()

	cp := *pos
	return &cp, nil
}

// Get returns a copy of the position with the given id.
func (s *PositionStore) Get(id string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

// ActiveByAsset returns copies of the non-liquidated positions on an asset,
// ordered by id so evaluation order is deterministic.
func (s *PositionStore) ActiveByAsset(asset string) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, p := range s.positions {
		if p.Asset == asset && !p.IsLiquidated {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortByID(out)
	return out
}

// ByOwner returns copies of the owner's non-liquidated positions.
func (s *PositionStore) ByOwner(owner string) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, p := range s.positions {
		if p.Owner == owner && !p.IsLiquidated {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortByID(out)
	return out
}

// AllActive returns copies of every non-liquidated position.
func (s *PositionStore) AllActive() []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Position
	for _, p := range s.positions {
		if !p.IsLiquidated {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortByID(out)
	return out
}

// ActiveAssets returns the distinct assets with at least one active position.
func (s *PositionStore) ActiveAssets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, p := range s.positions {
		if !p.IsLiquidated && !seen[p.Asset] {
			seen[p.Asset] = true
			out = append(out, p.Asset)
		}
	}
	sort.Strings(out)
	return out
}

// ApplyPrice sets the current price on every active position of the asset,
// recomputes unrealized PnL and returns copies of the updated positions in
// id order.
func (s *PositionStore) ApplyPrice(asset string, price float64) []*domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Position
	for _, p := range s.positions {
		if p.Asset != asset || p.IsLiquidated {
			continue
		}
		p.CurrentPrice = price
		p.UnrealizedPnL = ComputePnL(p.Side, p.EntryPrice, price, p.NotionalSize)
		cp := *p
		out = append(out, &cp)
	}
	sortByID(out)
	return out
}

// MarkLiquidated flags a position as liquidated. The transition happens at
// most once: the returned bool is true only for the call that performed it,
// so callers emit a single notification. A second call is a no-op.
//
// The in-memory flag is committed before persistence; a repository failure
// is returned but never reverts the flag.
func (s *PositionStore) MarkLiquidated(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	p, ok := s.positions[id]
	if !ok {
		s.mu.Unlock()
		return false, domain.ErrPositionNotFound
	}
	if p.IsLiquidated {
		s.mu.Unlock()
		return false, nil
	}
	p.IsLiquidated = true
	cp := *p
	s.mu.Unlock()

	if err := s.repo.UpdatePosition(ctx, &cp); err != nil {
		return true, fmt.Errorf("failed to persist liquidation: %w", err)
	}
	return true, nil
}

// Stats aggregates the active set. LiquidatedTotal counts positions
// liquidated in this process lifetime only; durable counts come from the
// event repository.
func (s *PositionStore) Stats() domain.MonitorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.MonitorStats
	for _, p := range s.positions {
		if p.IsLiquidated {
			stats.LiquidatedTotal++
			continue
		}
		stats.ActivePositions++
		stats.TotalNotional += p.NotionalSize
		stats.TotalMargin += p.Margin
	}
	return stats
}

func sortByID(positions []*domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].ID < positions[j].ID
	})
}
