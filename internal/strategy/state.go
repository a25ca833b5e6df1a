// Package strategy implements per-strategy lifecycle: loading definitions,
// the runtime state machine, and the runner goroutine that drives one
// strategy against its instrument's tick stream.
package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trading-engine/pkg/types"
)

// State is a strategy's mutable runtime state. Its runner is the sole
// writer; the mutex exists so the health reporter and the post-join summary
// can read consistently. Terminal phases are absorbing: every mutator is a
// no-op once the phase is terminal.
type State struct {
	mu          sync.Mutex
	phase       types.Phase
	entryPrice  decimal.Decimal
	entryTime   time.Time
	exitPrice   decimal.Decimal
	exitTime    time.Time
	exitReason  types.ExitReason
	lastPrice   decimal.Decimal
	realizedPnL decimal.Decimal
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	Phase       types.Phase
	EntryPrice  decimal.Decimal
	EntryTime   time.Time
	ExitPrice   decimal.Decimal
	ExitTime    time.Time
	ExitReason  types.ExitReason
	LastPrice   decimal.Decimal
	RealizedPnL decimal.Decimal
}

// NewState creates a State in CREATED.
func NewState() *State {
	return &State{phase: types.PhaseCreated}
}

// Phase returns the current lifecycle phase.
func (s *State) Phase() types.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a copy of all fields.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:       s.phase,
		EntryPrice:  s.entryPrice,
		EntryTime:   s.entryTime,
		ExitPrice:   s.exitPrice,
		ExitTime:    s.exitTime,
		ExitReason:  s.exitReason,
		LastPrice:   s.lastPrice,
		RealizedPnL: s.realizedPnL,
	}
}

// MarkOpen transitions CREATED→OPEN, recording the entry fill.
func (s *State) MarkOpen(tick types.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != types.PhaseCreated {
		return
	}
	s.phase = types.PhaseOpen
	s.entryPrice = tick.Price
	s.entryTime = tick.Timestamp
	s.lastPrice = tick.Price
}

// ObserveTick records the latest price while OPEN.
func (s *State) ObserveTick(tick types.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != types.PhaseOpen {
		return
	}
	s.lastPrice = tick.Price
}

// MarkExit transitions OPEN→CLOSED (or OPEN→FORCE_CLOSED when forced),
// recording the exit fill and realized P&L.
func (s *State) MarkExit(tick types.Tick, reason types.ExitReason, quantity int64, forced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != types.PhaseOpen {
		return
	}
	s.exitPrice = tick.Price
	s.exitTime = tick.Timestamp
	s.exitReason = reason
	s.lastPrice = tick.Price
	s.realizedPnL = tick.Price.Sub(s.entryPrice).Mul(decimal.NewFromInt(quantity))
	if forced {
		s.phase = types.PhaseForceClosed
	} else {
		s.phase = types.PhaseClosed
	}
}

// MarkClosedNeverEntered transitions CREATED→CLOSED at shutdown for a
// strategy that never opened a position. No exit fields are set and realized
// P&L is zero.
func (s *State) MarkClosedNeverEntered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != types.PhaseCreated {
		return
	}
	s.phase = types.PhaseClosed
}

// MarkFailed transitions any non-terminal phase to FAILED with reason ERROR.
func (s *State) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.phase = types.PhaseFailed
	s.exitReason = types.ExitError
}

// NeverEntered reports whether the strategy closed without ever opening a
// position.
func (s Snapshot) NeverEntered() bool {
	return s.Phase == types.PhaseClosed && s.EntryTime.IsZero()
}
