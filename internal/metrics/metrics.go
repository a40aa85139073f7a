// Package metrics computes run-level performance statistics from an
// engine's bookkeeping (SPEC_FULL §4.12). Grounded on the teacher's
// internal/backtester/metrics.go MetricsCalculator, trimmed to the metrics
// SPEC_FULL names and reusing pkg/utils's decimal statistics helpers rather
// than reimplementing mean/stddev/Sharpe locally.
package metrics

import (
	"time"

	"github.com/quadra-systems/hlquad/internal/engine"
	"github.com/quadra-systems/hlquad/pkg/utils"
	"github.com/shopspring/decimal"
)

// periodsPerYear is the annualization factor for Sharpe, matching
// SPEC_FULL's daily-return proxy (√252).
const periodsPerYear = 252

// Report is the full set of performance metrics computed at engine
// termination, or on demand during a live run.
type Report struct {
	TotalReturn     decimal.Decimal
	BuyHoldReturn   decimal.Decimal
	ExposureTimePct decimal.Decimal
	Duration        time.Duration
	Sharpe          decimal.Decimal
	MaxDrawdown     decimal.Decimal
	WinRate         decimal.Decimal
	NumTrades       int
}

// Compute derives a Report from an engine's accumulated run state.
func Compute(snapshot engine.Snapshot, equityCurve []engine.EquityPoint, returns []decimal.Decimal) Report {
	report := Report{}

	if !snapshot.InitialCapital.IsZero() {
		report.TotalReturn = snapshot.FinalEquity.Sub(snapshot.InitialCapital).Div(snapshot.InitialCapital)
	}
	if !snapshot.FirstPrice.IsZero() {
		report.BuyHoldReturn = snapshot.LastPrice.Sub(snapshot.FirstPrice).Div(snapshot.FirstPrice)
	}
	if snapshot.TotalBars > 0 {
		report.ExposureTimePct = decimal.NewFromInt(snapshot.BarsInPosition).
			Div(decimal.NewFromInt(snapshot.TotalBars)).
			Mul(decimal.NewFromInt(100))
	}
	if !snapshot.StartTime.IsZero() && !snapshot.EndTime.IsZero() {
		report.Duration = snapshot.EndTime.Sub(snapshot.StartTime)
	}

	report.Sharpe = utils.CalculateSharpeRatio(returns, decimal.Zero, periodsPerYear)
	report.MaxDrawdown = equityCurveDrawdown(equityCurve)

	report.NumTrades = snapshot.Wins + snapshot.Losses
	if report.NumTrades > 0 {
		report.WinRate = utils.CalculateWinRate(returns)
	}

	return report
}

func equityCurveDrawdown(equityCurve []engine.EquityPoint) decimal.Decimal {
	values := make([]decimal.Decimal, len(equityCurve))
	for i, p := range equityCurve {
		values[i] = p.Equity
	}
	return utils.CalculateMaxDrawdown(values)
}
