// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine: ticks, strategy
// definitions, lifecycle phases, and exit reasons. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is a strategy lifecycle state.
//
// Valid transitions: CREATED→OPEN→{CLOSED, FORCE_CLOSED}; CREATED→CLOSED
// (shutdown before entry); any→FAILED. Terminal phases are absorbing.
type Phase string

const (
	PhaseCreated     Phase = "CREATED"
	PhaseOpen        Phase = "OPEN"
	PhaseClosed      Phase = "CLOSED"
	PhaseForceClosed Phase = "FORCE_CLOSED"
	PhaseFailed      Phase = "FAILED"
)

// Terminal reports whether the phase is absorbing.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseClosed, PhaseForceClosed, PhaseFailed:
		return true
	}
	return false
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitCondition   ExitReason = "EXIT_CONDITION"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTargetHit   ExitReason = "TARGET_HIT"
	ExitMarketClose ExitReason = "MARKET_CLOSE"
	ExitError       ExitReason = "ERROR"
)

// Side represents the direction of a simulated order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Tick is a single price sample for an instrument. Immutable once emitted.
// Ticks for a given instrument are totally ordered by Timestamp.
type Tick struct {
	Instrument string          `json:"instrument"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Order is a simulated fill record emitted on entry and exit.
// Orders are logged, never routed anywhere.
type Order struct {
	StrategyID string          `json:"strategy_id"`
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Strategy is an immutable strategy definition from the strategies file.
// Entry and exit conditions are predicate DSL source strings; they are
// parsed once at startup.
type Strategy struct {
	ID             string          `json:"strategy_id"`
	Instrument     string          `json:"instrument"`
	EntryCondition string          `json:"entry_condition"`
	ExitCondition  string          `json:"exit_condition"`
	Quantity       int64           `json:"quantity"`
	MaxLoss        decimal.Decimal `json:"max_loss"`
	MaxProfit      decimal.Decimal `json:"max_profit"`
}
