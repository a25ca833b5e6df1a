package engine

import (
	"log/slog"
	"time"

	"trading-engine/internal/api"
	"trading-engine/pkg/types"
)

// healthLoop periodically logs the engine-wide status record and pushes it
// to stream clients. It stops on cancellation; the final summary covers the
// terminal state, so no report is emitted during shutdown.
func (e *Engine) healthLoop() {
	ticker := time.NewTicker(e.cfg.HealthInterval)
	defer ticker.Stop()

	var lastFailed int
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			report, failed := e.healthStatus(lastFailed)
			if failed > lastFailed {
				e.logger.Warn("strategies failed since last report", "count", failed-lastFailed)
			}
			lastFailed = failed

			level := slog.LevelInfo
			if report.Status != "healthy" {
				level = slog.LevelWarn
			}
			e.logger.Log(e.ctx, level, "health",
				"status", report.Status,
				"active_strategies", report.ActiveStrategies,
				"total_strategies", report.TotalStrategies,
				"failed_strategies", failed,
				"market_feed_active", report.MarketFeedActive,
				"prices", report.Prices,
				"dropped_ticks_total", report.DroppedTicksTotal,
			)
			e.emit(api.Event{Type: api.EventHealth, Timestamp: e.clock.Now(), Data: report})
		}
	}
}

// healthStatus builds one health report. A strategy that transitioned to
// FAILED since the previous report marks this report degraded, even though
// the failed strategy itself is already terminal.
func (e *Engine) healthStatus(lastFailed int) (api.StatusReport, int) {
	report := e.Status()

	failed := 0
	for _, s := range report.Strategies {
		if s.Phase == types.PhaseFailed {
			failed++
		}
	}
	if failed > lastFailed {
		report.Status = "degraded"
	}
	return report, failed
}
