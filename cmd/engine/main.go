// Trading Engine — runs JSON-defined trading strategies against a simulated
// market feed for one trading session.
//
// Architecture:
//
//	main.go               — entry point: loads config, starts engine, waits for SIGINT/SIGTERM or market close
//	engine/engine.go      — orchestrator: wires feed → runners, session timing, shutdown sequencing
//	engine/summary.go     — end-of-run accounting: per-strategy results, winners/losers, total P&L
//	feed/feed.go          — simulated feed: random-walk prices on a fixed cadence, bounded fan-out
//	predicate/parse.go    — entry/exit condition DSL: price/time comparisons with AND/OR
//	strategy/runner.go    — per-strategy goroutine: entry, risk checks, exit, force-close on shutdown
//	strategy/state.go     — lifecycle state machine: CREATED → OPEN → CLOSED/FORCE_CLOSED, FAILED on error
//	risk/risk.go          — max-loss / max-profit checks, evaluated before the exit condition
//	api/server.go         — optional read-only status endpoint + websocket event stream
//
// All fills are simulated and logged; nothing is routed to a brokerage.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"trading-engine/internal/clock"
	"trading-engine/internal/config"
	"trading-engine/internal/engine"
)

func main() {
	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Anything that escapes the engine's own recovery is a bug; report it
	// and exit distinctly from config errors.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("unhandled error", "error", fmt.Sprint(rec))
			os.Exit(2)
		}
	}()

	eng, err := engine.New(*cfg, clock.System{}, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("trading engine started",
		"market_open", cfg.MarketOpen,
		"market_close", cfg.MarketClose,
		"strategies_file", cfg.StrategiesFile,
		"tick_interval", cfg.TickInterval,
	)

	// Run until a signal arrives or the engine stops itself at market close.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		// A second signal aborts the graceful path immediately.
		go func() {
			s := <-sigCh
			logger.Error("second signal, exiting immediately", "signal", s.String())
			os.Exit(1)
		}()
		eng.Stop()
	case <-eng.Done():
	}

	<-eng.Done()
}
