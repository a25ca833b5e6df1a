package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trading-engine/internal/api"
	"trading-engine/internal/clock"
	"trading-engine/internal/predicate"
	"trading-engine/internal/risk"
	"trading-engine/pkg/types"
)

// TickSource is the runner's view of its market-data subscription.
// *feed.Subscription satisfies it; tests substitute a fake.
type TickSource interface {
	C() <-chan types.Tick
	Dropped() int64
	Close()
}

// Runner drives one strategy. It owns the strategy's State exclusively: no
// other component writes it, and the orchestrator reads full snapshots only
// after the runner has terminated.
//
// Per-tick priority while OPEN is risk check, then exit predicate, then
// continue. On cancellation the current tick finishes evaluating, then an
// open position is force-closed at the last observed price.
type Runner struct {
	def    types.Strategy
	entry  predicate.Expr
	exit   predicate.Expr
	state  *State
	sub    TickSource
	events chan<- api.Event
	logger *slog.Logger
	done   chan struct{}

	lastTick types.Tick
	hasTick  bool
}

// NewRunner wires a runner for one strategy. events may be nil.
func NewRunner(
	def types.Strategy,
	entry, exit predicate.Expr,
	sub TickSource,
	events chan<- api.Event,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		def:    def,
		entry:  entry,
		exit:   exit,
		state:  NewState(),
		sub:    sub,
		events: events,
		logger: logger.With("component", "runner", "strategy_id", def.ID),
		done:   make(chan struct{}),
	}
}

// State returns the runner's strategy state.
func (r *Runner) State() *State { return r.state }

// Definition returns the immutable strategy definition.
func (r *Runner) Definition() types.Strategy { return r.def }

// Done is closed when the runner has terminated.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run executes the strategy until it reaches a terminal phase or ctx is
// cancelled. Any panic in evaluation or the runner's own logic is caught
// here: the strategy transitions to FAILED and the runner exits cleanly, so
// nothing a single strategy does can affect the feed or its siblings.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		if n := r.sub.Dropped(); n > 0 {
			r.logger.Warn("subscription dropped ticks", "count", n)
		}
		r.sub.Close()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			r.state.MarkFailed()
			r.logger.Error("error", "message", fmt.Sprint(rec))
			r.emit(api.Event{Type: api.EventError, Timestamp: time.Now(), StrategyID: r.def.ID,
				Data: fmt.Sprint(rec)})
		}
	}()

	r.logger.Info("strategy_started",
		"instrument", r.def.Instrument,
		"entry", r.entry.String(),
		"exit", r.exit.String(),
		"quantity", r.def.Quantity,
	)
	r.emit(api.Event{Type: api.EventStarted, Timestamp: time.Now(), StrategyID: r.def.ID})

	for {
		select {
		case <-ctx.Done():
			r.finishOnShutdown()
			return
		case tick := <-r.sub.C():
			r.onTick(tick)
			if r.state.Phase().Terminal() {
				return
			}
		}
	}
}

func (r *Runner) onTick(tick types.Tick) {
	r.lastTick = tick
	r.hasTick = true
	env := predicate.Env{Price: tick.Price, Time: clock.Minutes(tick.Timestamp)}

	switch r.state.Phase() {
	case types.PhaseCreated:
		if r.entry.Eval(env) {
			r.state.MarkOpen(tick)
			r.logOrder(types.BUY, tick)
			r.logger.Info("entry", "price", tick.Price, "quantity", r.def.Quantity)
			r.emit(api.Event{Type: api.EventEntry, Timestamp: tick.Timestamp,
				StrategyID: r.def.ID, Data: tick.Price})
		}

	case types.PhaseOpen:
		r.state.ObserveTick(tick)

		pos := risk.Position{
			EntryPrice: r.state.Snapshot().EntryPrice,
			Quantity:   r.def.Quantity,
			MaxLoss:    r.def.MaxLoss,
			MaxProfit:  r.def.MaxProfit,
		}
		switch risk.Check(pos, tick.Price) {
		case risk.StopLoss:
			r.exitPosition(tick, types.ExitStopLoss, false)
		case risk.TargetHit:
			r.exitPosition(tick, types.ExitTargetHit, false)
		case risk.None:
			if r.exit.Eval(env) {
				r.exitPosition(tick, types.ExitCondition, false)
			}
		}
	}
}

func (r *Runner) exitPosition(tick types.Tick, reason types.ExitReason, forced bool) {
	r.state.MarkExit(tick, reason, r.def.Quantity, forced)
	r.logOrder(types.SELL, tick)

	snap := r.state.Snapshot()
	r.logger.Info("exit",
		"reason", reason,
		"price", tick.Price,
		"pnl", snap.RealizedPnL,
	)
	r.emit(api.Event{Type: api.EventExit, Timestamp: tick.Timestamp, StrategyID: r.def.ID,
		Data: map[string]any{"reason": reason, "price": tick.Price, "pnl": snap.RealizedPnL}})
}

// finishOnShutdown runs the cancellation branch: an open position is
// force-closed at the last observed price; a strategy that never entered
// closes with no position.
func (r *Runner) finishOnShutdown() {
	switch r.state.Phase() {
	case types.PhaseOpen:
		// An OPEN strategy has always observed at least its entry tick.
		if r.hasTick {
			r.exitPosition(r.lastTick, types.ExitMarketClose, true)
		}
	case types.PhaseCreated:
		r.state.MarkClosedNeverEntered()
		r.logger.Info("closed before entry")
	}
}

// logOrder records a simulated fill. Orders are never routed anywhere.
func (r *Runner) logOrder(side types.Side, tick types.Tick) {
	order := types.Order{
		StrategyID: r.def.ID,
		Instrument: r.def.Instrument,
		Side:       side,
		Quantity:   r.def.Quantity,
		Price:      tick.Price,
		Timestamp:  tick.Timestamp,
	}
	r.logger.Debug("order",
		"side", order.Side,
		"quantity", order.Quantity,
		"instrument", order.Instrument,
		"price", order.Price,
	)
}

// emit sends an event without ever blocking the runner.
func (r *Runner) emit(evt api.Event) {
	if r.events == nil {
		return
	}
	select {
	case r.events <- evt:
	default:
	}
}
