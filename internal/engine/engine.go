// Package engine is the central orchestrator of the trading engine.
//
// It wires together all subsystems:
//
//  1. New() loads and validates strategies, parses their predicates (failing
//     fast on any syntax error), resolves seed prices, and constructs the
//     feed plus one runner per strategy, each with its own bounded
//     subscription.
//  2. Start() waits for market open, then launches the feed, every runner,
//     the health reporter, the market-close trigger, and (if configured)
//     the status API.
//  3. Stop() broadcasts cancellation, joins runners within the shutdown
//     grace (anything slower is abandoned), stops the feed and reporter,
//     and emits the final summary.
//
// Lifecycle: New() → Start() → [runs until signal or market close] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"trading-engine/internal/api"
	"trading-engine/internal/clock"
	"trading-engine/internal/config"
	"trading-engine/internal/feed"
	"trading-engine/internal/predicate"
	"trading-engine/internal/strategy"
	"trading-engine/pkg/types"
)

// Engine orchestrates the feed, the strategy runners, and shutdown.
type Engine struct {
	cfg    config.Config
	clock  clock.Clock
	logger *slog.Logger

	feed    *feed.Feed
	runners []*strategy.Runner
	events  chan api.Event
	apiSrv  *api.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // feed supervisor + health reporter

	degraded       atomic.Bool // feed died permanently
	startMu        sync.Mutex  // serializes the start block against shutdown
	runnersStarted atomic.Bool

	stopOnce sync.Once
	done     chan struct{}
	summary  Summary // valid once done is closed
}

// New constructs and wires all components. Every startup error here is a
// configuration problem: the caller should exit nonzero without starting
// anything.
func New(cfg config.Config, clk clock.Clock, logger *slog.Logger) (*Engine, error) {
	defs, err := strategy.LoadFile(cfg.StrategiesFile)
	if err != nil {
		return nil, err
	}

	// Parse all predicates up front. One malformed predicate fails the whole
	// startup rather than silently dropping a strategy.
	entries := make([]predicate.Expr, len(defs))
	exits := make([]predicate.Expr, len(defs))
	for i, def := range defs {
		if entries[i], err = predicate.Parse(def.EntryCondition); err != nil {
			return nil, fmt.Errorf("strategy %q entry condition: %w", def.ID, err)
		}
		if exits[i], err = predicate.Parse(def.ExitCondition); err != nil {
			return nil, fmt.Errorf("strategy %q exit condition: %w", def.ID, err)
		}
		if predicate.HasPriceEquality(entries[i]) || predicate.HasPriceEquality(exits[i]) {
			logger.Warn("predicate uses == on price; exact decimal equality rarely fires, prefer <= or >=",
				"strategy_id", def.ID)
		}
	}

	seeds, err := resolveSeeds(cfg, defs, entries)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan api.Event, 256)

	f := feed.New(feed.Config{
		TickInterval: cfg.TickInterval,
		Volatility:   cfg.PriceVolatility,
		Capacity:     cfg.SubscriptionCapacity,
	}, seeds, clk, logger)

	e := &Engine{
		cfg:    cfg,
		clock:  clk,
		logger: logger.With("component", "engine"),
		feed:   f,
		events: events,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	for i, def := range defs {
		sub := f.Subscribe(def.Instrument)
		e.runners = append(e.runners, strategy.NewRunner(def, entries[i], exits[i], sub, events, logger))
	}

	if cfg.StatusAddr != "" {
		e.apiSrv = api.NewServer(cfg.StatusAddr, e, events, logger)
	}

	return e, nil
}

// resolveSeeds determines every instrument's initial price: the configured
// seed table first, otherwise the first price literal in any of the
// instrument's entry conditions. An instrument with neither is a startup
// error, which also catches instrument typos in the strategies file.
func resolveSeeds(cfg config.Config, defs []types.Strategy, entries []predicate.Expr) (map[string]decimal.Decimal, error) {
	seeds := make(map[string]decimal.Decimal)
	for i, def := range defs {
		if _, ok := seeds[def.Instrument]; ok {
			continue
		}
		if seed, ok := cfg.PriceSeeds[def.Instrument]; ok {
			seeds[def.Instrument] = seed
			continue
		}
		if lit, ok := predicate.FirstPriceLiteral(entries[i]); ok && lit.IsPositive() {
			seeds[def.Instrument] = lit
			continue
		}
		return nil, fmt.Errorf("no seed price for instrument %q (strategy %q): add it to PRICE_SEEDS or use a price literal in the entry condition", def.Instrument, def.ID)
	}
	return seeds, nil
}

// Start launches all background goroutines. Runners start only once market
// open is reached; the whole startup is aborted by Stop.
func (e *Engine) Start() error {
	openAt, err := clock.NextOccurrence(e.clock.Now(), e.cfg.MarketOpen)
	if err != nil {
		return fmt.Errorf("MARKET_OPEN: %w", err)
	}
	closeAt, err := clock.NextOccurrence(e.clock.Now(), e.cfg.MarketClose)
	if err != nil {
		return fmt.Errorf("MARKET_CLOSE: %w", err)
	}

	// If the next close comes before the next open, the session is already
	// in progress; otherwise wait for the open and take the close that
	// follows it. Comparing full instants keeps sessions that straddle
	// midnight correct.
	inSession := closeAt.Before(openAt)
	if !inSession {
		closeAt, _ = clock.NextOccurrence(openAt, e.cfg.MarketClose)
	}

	go e.run(openAt, closeAt, inSession)
	return nil
}

func (e *Engine) run(openAt, closeAt time.Time, inSession bool) {
	if !inSession {
		wait := time.Until(openAt)
		e.logger.Info("waiting for market open", "open_at", openAt, "wait", wait)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-e.ctx.Done():
			return
		}
	}

	// Stop can land exactly as the open timer fires; the gate makes this
	// start block and shutdown's started check mutually exclusive, so
	// wg.Add never races wg.Wait.
	e.startMu.Lock()
	if e.ctx.Err() != nil {
		e.startMu.Unlock()
		return
	}

	e.startFeed()

	e.runnersStarted.Store(true)
	for _, r := range e.runners {
		go r.Run(e.ctx)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.healthLoop()
	}()

	if e.apiSrv != nil {
		go func() {
			if err := e.apiSrv.Start(); err != nil {
				e.logger.Error("status server failed", "error", err)
			}
		}()
	}
	e.startMu.Unlock()

	go e.marketCloseTrigger(closeAt)

	e.logger.Info("engine started",
		"strategies", len(e.runners),
		"market_close", closeAt,
		"tick_interval", e.cfg.TickInterval,
	)
}

// startFeed supervises the feed goroutine. A feed failure gets one restart;
// a second failure marks the engine degraded and triggers shutdown.
func (e *Engine) startFeed() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for attempt := 0; attempt < 2; attempt++ {
			err := e.runFeedOnce()
			if err == nil {
				return // clean exit (cancelled or stopped)
			}
			e.logger.Error("market feed failed", "error", err, "attempt", attempt+1)
		}
		e.degraded.Store(true)
		e.logger.Error("market feed failed after restart, shutting down")
		go e.Stop()
	}()
}

func (e *Engine) runFeedOnce() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("feed panic: %v", rec)
		}
	}()
	e.feed.Run(e.ctx)
	return nil
}

func (e *Engine) marketCloseTrigger(closeAt time.Time) {
	timer := time.NewTimer(time.Until(closeAt))
	defer timer.Stop()
	select {
	case <-timer.C:
		e.logger.Info("market close reached", "close_at", closeAt)
		e.Stop()
	case <-e.ctx.Done():
	}
}

// Stop runs the shutdown sequence: broadcast cancellation, join runners
// within the grace window, stop the feed, stop the reporter and status
// server, emit the summary. Idempotent; a second trigger is a no-op.
func (e *Engine) Stop() {
	e.stopOnce.Do(e.shutdown)
}

func (e *Engine) shutdown() {
	e.logger.Info("shutdown_begin")
	e.emit(api.Event{Type: api.EventShutdown, Timestamp: e.clock.Now(), Data: "begin"})

	// 1. Broadcast cancellation to runners and feed.
	e.cancel()

	// 2. Bounded join: runners get the grace window to force-close. If
	// shutdown arrived before market open the runners never started, so
	// their strategies close directly as never-entered. Taking the gate
	// after cancelling guarantees the start block either completed or will
	// observe the cancellation and bail.
	e.startMu.Lock()
	started := e.runnersStarted.Load()
	e.startMu.Unlock()

	abandoned := make(map[string]bool)
	if started {
		abandoned = e.joinRunners(e.cfg.ShutdownGrace)
	} else {
		for _, r := range e.runners {
			r.State().MarkClosedNeverEntered()
		}
	}

	// 3-4. Stop the feed and wait out the supervisor and health reporter.
	e.feed.Stop()
	e.wg.Wait()

	if e.apiSrv != nil {
		if err := e.apiSrv.Stop(); err != nil {
			e.logger.Error("failed to stop status server", "error", err)
		}
	}

	// 5. Final summary. Runner states are read only after the join barrier;
	// abandoned runners are still snapshot-safe.
	e.summary = e.buildSummary(abandoned)
	e.summary.log(e.logger)

	e.logger.Info("shutdown_end")
	close(e.done)
}

// joinRunners waits for every runner up to a shared grace deadline and
// reports the IDs that did not finish in time.
func (e *Engine) joinRunners(grace time.Duration) map[string]bool {
	abandoned := make(map[string]bool)
	timer := time.NewTimer(grace)
	defer timer.Stop()

	expired := false
	for _, r := range e.runners {
		if expired {
			select {
			case <-r.Done():
			default:
				abandoned[r.Definition().ID] = true
			}
			continue
		}
		select {
		case <-r.Done():
		case <-timer.C:
			expired = true
			select {
			case <-r.Done():
			default:
				abandoned[r.Definition().ID] = true
			}
		}
	}

	for id := range abandoned {
		e.logger.Error("runner did not finish within grace, abandoned", "strategy_id", id)
	}
	return abandoned
}

// Done is closed once shutdown has completed.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Summary returns the final summary. Valid only after Done is closed.
func (e *Engine) Summary() Summary { return e.summary }

// Status builds the engine-wide status record served by the API and logged
// by the health reporter. Degraded means the feed is down while strategies
// still need it.
func (e *Engine) Status() api.StatusReport {
	snap := e.feed.Snapshot()

	var active, nonTerminal int
	strategies := make([]api.StrategyStatus, 0, len(e.runners))
	for _, r := range e.runners {
		s := r.State().Snapshot()
		switch {
		case s.Phase == types.PhaseOpen:
			active++
			nonTerminal++
		case !s.Phase.Terminal():
			nonTerminal++
		}
		strategies = append(strategies, api.StrategyStatus{
			ID:          r.Definition().ID,
			Instrument:  r.Definition().Instrument,
			Phase:       s.Phase,
			EntryPrice:  s.EntryPrice,
			ExitPrice:   s.ExitPrice,
			ExitReason:  s.ExitReason,
			RealizedPnL: s.RealizedPnL,
		})
	}

	status := "healthy"
	if e.degraded.Load() || (!snap.Active && nonTerminal > 0) {
		status = "degraded"
	}

	return api.StatusReport{
		Status:            status,
		ActiveStrategies:  active,
		TotalStrategies:   len(e.runners),
		MarketFeedActive:  snap.Active,
		Prices:            snap.Prices,
		DroppedTicksTotal: snap.DroppedTicks,
		Strategies:        strategies,
	}
}

// emit publishes an engine event without blocking.
func (e *Engine) emit(evt api.Event) {
	select {
	case e.events <- evt:
	default:
	}
}
