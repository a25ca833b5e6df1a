// Package feed simulates a live market data feed.
//
// One goroutine (Run) walks a random price per instrument on a fixed cadence
// and fans each tick out to that instrument's subscriptions. Every
// subscription is a bounded single-producer/single-consumer FIFO with a
// drop-oldest policy on overflow: a slow or stuck subscriber loses its stale
// ticks but can never stall the feed or any sibling subscriber. Stale prices
// are worthless in a live engine, so discarding beats blocking.
package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"trading-engine/internal/clock"
	"trading-engine/pkg/types"
)

// Config tunes tick generation and delivery.
type Config struct {
	TickInterval time.Duration // cadence between ticks per instrument
	Volatility   float64       // uniform half-width of the per-tick return
	Capacity     int           // per-subscription buffer size
}

// Snapshot is a non-blocking view of feed state for health reporting.
type Snapshot struct {
	Prices       map[string]decimal.Decimal
	Active       bool
	DroppedTicks int64
}

// Feed generates ticks for every instrument that has at least one
// subscription. Prices are written only by the feed goroutine and read via
// Snapshot copies.
type Feed struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
	rng    *rand.Rand

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	subs   map[string][]*Subscription

	active  atomic.Bool
	dropped atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a feed with per-instrument seed prices.
func New(cfg Config, seeds map[string]decimal.Decimal, clk clock.Clock, logger *slog.Logger) *Feed {
	prices := make(map[string]decimal.Decimal, len(seeds))
	for instrument, seed := range seeds {
		prices[instrument] = seed
	}
	return &Feed{
		cfg:    cfg,
		clock:  clk,
		logger: logger.With("component", "feed"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		prices: prices,
		subs:   make(map[string][]*Subscription),
		stop:   make(chan struct{}),
	}
}

// Subscribe registers a bounded subscription for an instrument and returns
// the consumer handle. Safe to call concurrently with Run.
func (f *Feed) Subscribe(instrument string) *Subscription {
	sub := &Subscription{
		instrument: instrument,
		ch:         make(chan types.Tick, f.cfg.Capacity),
		feed:       f,
	}
	f.mu.Lock()
	f.subs[instrument] = append(f.subs[instrument], sub)
	f.mu.Unlock()
	f.logger.Debug("new subscription", "instrument", instrument)
	return sub
}

func (f *Feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.subs[sub.instrument]
	for i, s := range list {
		if s == sub {
			f.subs[sub.instrument] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Run emits ticks on the configured cadence until ctx is cancelled or Stop
// is called. Blocks; call in its own goroutine.
func (f *Feed) Run(ctx context.Context) {
	f.active.Store(true)
	defer f.active.Store(false)

	f.logger.Info("market feed started", "tick_interval", f.cfg.TickInterval)

	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("market feed stopped")
			return
		case <-f.stop:
			f.logger.Info("market feed stopped")
			return
		case <-ticker.C:
			f.emitTicks()
		}
	}
}

// Stop halts emission after the current iteration. Already-queued ticks stay
// readable. Idempotent.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}

// emitTicks advances every subscribed instrument's price by one random-walk
// step and fans the tick out. The fan-out is non-blocking per subscriber, so
// the critical section is bounded.
func (f *Feed) emitTicks() {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for instrument, subs := range f.subs {
		if len(subs) == 0 {
			continue
		}
		price := f.nextPrice(instrument)
		tick := types.Tick{Instrument: instrument, Price: price, Timestamp: now}

		for _, sub := range subs {
			if sub.publish(tick) {
				f.dropped.Add(1)
			}
		}
	}
}

// nextPrice applies p ← p × (1 + ε), ε uniform in [−volatility, +volatility],
// rounded to 2 decimal places. Caller holds f.mu.
func (f *Feed) nextPrice(instrument string) decimal.Decimal {
	price := f.prices[instrument]
	eps := (f.rng.Float64()*2 - 1) * f.cfg.Volatility
	price = price.Mul(decimal.NewFromFloat(1 + eps)).Round(2)
	f.prices[instrument] = price
	return price
}

// CurrentPrice returns the latest simulated price for an instrument.
func (f *Feed) CurrentPrice(instrument string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[instrument]
	return p, ok
}

// Snapshot returns a copy of current prices plus liveness and drop counters.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	prices := make(map[string]decimal.Decimal, len(f.prices))
	for instrument, p := range f.prices {
		prices[instrument] = p
	}
	f.mu.RUnlock()

	return Snapshot{
		Prices:       prices,
		Active:       f.active.Load(),
		DroppedTicks: f.dropped.Load(),
	}
}
