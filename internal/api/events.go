// Package api exposes a read-only observation surface for the engine: a
// JSON status endpoint mirroring the health reporter's record, and a
// websocket stream of engine events. It mutates nothing.
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"trading-engine/pkg/types"
)

// Event types published on the stream.
const (
	EventStarted  = "strategy_started"
	EventEntry    = "entry"
	EventExit     = "exit"
	EventError    = "error"
	EventHealth   = "health"
	EventShutdown = "shutdown"
)

// Event is a single engine occurrence pushed to stream clients.
type Event struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Data       any       `json:"data,omitempty"`
}

// StrategyStatus is one strategy's externally visible state.
type StrategyStatus struct {
	ID          string           `json:"strategy_id"`
	Instrument  string           `json:"instrument"`
	Phase       types.Phase      `json:"phase"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	ExitPrice   decimal.Decimal  `json:"exit_price"`
	ExitReason  types.ExitReason `json:"exit_reason,omitempty"`
	RealizedPnL decimal.Decimal  `json:"realized_pnl"`
}

// StatusReport is the engine-wide record emitted by the health reporter and
// served on /api/status.
type StatusReport struct {
	Status            string                     `json:"status"` // healthy | degraded
	ActiveStrategies  int                        `json:"active_strategies"`
	TotalStrategies   int                        `json:"total_strategies"`
	MarketFeedActive  bool                       `json:"market_feed_active"`
	Prices            map[string]decimal.Decimal `json:"prices"`
	DroppedTicksTotal int64                      `json:"dropped_ticks_total"`
	Strategies        []StrategyStatus           `json:"strategies,omitempty"`
}

// StatusProvider supplies the current engine snapshot.
type StatusProvider interface {
	Status() StatusReport
}
