package usecase

import (
	"math"

	"github.com/stellarperps/perpmon/internal/domain"
)

// DefaultLiquidationThreshold liquidates a position once 80% of its margin
// is consumed by unrealized loss.
const DefaultLiquidationThreshold = 0.8

type LiquidationEvaluator struct {
	threshold float64
}

func NewLiquidationEvaluator(threshold float64) *LiquidationEvaluator {
	if threshold <= 0 {
		threshold = DefaultLiquidationThreshold
	}
	return &LiquidationEvaluator{threshold: threshold}
}

func (e *LiquidationEvaluator) Threshold() float64 {
	return e.threshold
}

// ShouldLiquidate reports whether the position's unrealized loss has reached
// the threshold share of its margin. The boundary is inclusive: a loss ratio
// exactly equal to the threshold liquidates. Profitable positions never
// liquidate regardless of ratio.
func (e *LiquidationEvaluator) ShouldLiquidate(pos *domain.Position) bool {
	if pos.IsLiquidated || pos.UnrealizedPnL >= 0 {
		return false
	}
	lossRatio := math.Abs(pos.UnrealizedPnL) / pos.Margin
	return lossRatio >= e.threshold
}
