package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"trading-engine/internal/strategy"
	"trading-engine/pkg/types"
)

// StrategyResult is one strategy's final outcome.
type StrategyResult struct {
	ID         string
	Instrument string
	strategy.Snapshot
	Abandoned bool
}

// Summary is the end-of-run accounting across all strategies.
type Summary struct {
	Results      []StrategyResult
	PhaseCounts  map[types.Phase]int
	ReasonCounts map[types.ExitReason]int
	Abandoned    int
	NeverEntered int
	Winners      int
	Losers       int
	TotalPnL     decimal.Decimal
	Degraded     bool
}

// buildSummary reads every runner's final state. Called only after the join
// barrier; an abandoned runner's state is still a consistent snapshot, its
// result is just flagged as not settled.
func (e *Engine) buildSummary(abandoned map[string]bool) Summary {
	s := Summary{
		PhaseCounts:  make(map[types.Phase]int),
		ReasonCounts: make(map[types.ExitReason]int),
		Degraded:     e.degraded.Load(),
	}

	for _, r := range e.runners {
		def := r.Definition()
		snap := r.State().Snapshot()
		res := StrategyResult{
			ID:         def.ID,
			Instrument: def.Instrument,
			Snapshot:   snap,
			Abandoned:  abandoned[def.ID],
		}
		s.Results = append(s.Results, res)

		s.PhaseCounts[snap.Phase]++
		if snap.ExitReason != "" {
			s.ReasonCounts[snap.ExitReason]++
		}
		if res.Abandoned {
			s.Abandoned++
			continue
		}

		switch {
		case snap.NeverEntered():
			s.NeverEntered++
		case snap.Phase == types.PhaseClosed || snap.Phase == types.PhaseForceClosed:
			s.TotalPnL = s.TotalPnL.Add(snap.RealizedPnL)
			if snap.RealizedPnL.IsPositive() {
				s.Winners++
			} else if snap.RealizedPnL.IsNegative() {
				s.Losers++
			}
		}
	}
	return s
}

func (s Summary) log(logger *slog.Logger) {
	for _, res := range s.Results {
		attrs := []any{
			"strategy_id", res.ID,
			"instrument", res.Instrument,
			"phase", res.Phase,
		}
		switch {
		case res.Abandoned:
			attrs = append(attrs, "abandoned", true)
		case res.NeverEntered():
			attrs = append(attrs, "never_entered", true)
		case res.Phase == types.PhaseFailed:
			attrs = append(attrs, "exit_reason", res.ExitReason)
		default:
			attrs = append(attrs,
				"exit_reason", res.ExitReason,
				"entry_price", res.EntryPrice,
				"exit_price", res.ExitPrice,
				"pnl", res.RealizedPnL,
			)
		}
		logger.Info("strategy result", attrs...)
	}

	logger.Info("run summary",
		"strategies", len(s.Results),
		"closed", s.PhaseCounts[types.PhaseClosed],
		"force_closed", s.PhaseCounts[types.PhaseForceClosed],
		"failed", s.PhaseCounts[types.PhaseFailed],
		"abandoned", s.Abandoned,
		"never_entered", s.NeverEntered,
		"winners", s.Winners,
		"losers", s.Losers,
		"total_pnl", s.TotalPnL,
		"degraded", s.Degraded,
	)
}
