// Package risk decides whether a position must be closed on a price update.
//
// The check is a pure function of the position and the new price; it runs on
// every tick while a strategy is OPEN, before the exit predicate, so a
// strategy can never miss a stop-loss because its exit condition fired on
// the same tick.
package risk

import "github.com/shopspring/decimal"

// Verdict is the outcome of a risk check.
type Verdict int

const (
	None Verdict = iota
	StopLoss
	TargetHit
)

func (v Verdict) String() string {
	switch v {
	case StopLoss:
		return "STOP_LOSS"
	case TargetHit:
		return "TARGET_HIT"
	}
	return "NONE"
}

// Position is the open-position view the check needs.
type Position struct {
	EntryPrice decimal.Decimal
	Quantity   int64
	MaxLoss    decimal.Decimal // positive, absolute money units
	MaxProfit  decimal.Decimal // positive, absolute money units
}

// PnL returns the unrealized profit and loss at price.
func (p Position) PnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(decimal.NewFromInt(p.Quantity))
}

// Check evaluates the position against price. StopLoss is checked before
// TargetHit so that when both thresholds straddle the new price, the
// protective exit wins.
func Check(pos Position, price decimal.Decimal) Verdict {
	pnl := pos.PnL(price)
	if pnl.LessThanOrEqual(pos.MaxLoss.Neg()) {
		return StopLoss
	}
	if pnl.GreaterThanOrEqual(pos.MaxProfit) {
		return TargetHit
	}
	return None
}
