package usecase

import "github.com/stellarperps/perpmon/internal/domain"

// ComputePnL returns the unrealized profit/loss for a position of the given
// side and notional size. Callers guarantee entryPrice > 0 (enforced at
// position creation).
func ComputePnL(side domain.Side, entryPrice, currentPrice, notionalSize float64) float64 {
	change := (currentPrice - entryPrice) / entryPrice
	if side == domain.SideShort {
		return notionalSize * -change
	}
	return notionalSize * change
}

// LiquidationPrice computes the price at which the full margin is consumed.
// The margin ratio (margin/notional) shifts the entry price down for longs
// and up for shorts. Fixed at creation, never recomputed.
func LiquidationPrice(side domain.Side, entryPrice, margin, notionalSize float64) float64 {
	marginRatio := margin / notionalSize
	if side == domain.SideShort {
		return entryPrice * (1 + marginRatio)
	}
	return entryPrice * (1 - marginRatio)
}
