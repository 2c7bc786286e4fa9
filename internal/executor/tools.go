package executor

import (
	"context"
	"fmt"

	"github.com/agentgauge/agentgauge/internal/domain"
)

// RFQ is one historical request-for-quote
type RFQ struct {
	ID         string  `json:"id"`
	Underlying string  `json:"underlying"`
	Tenor      string  `json:"tenor"`
	Coupon     float64 `json:"coupon"`
	Status     string  `json:"status"`
}

// RFQHistory is the result of get_client_rfq_history
type RFQHistory struct {
	RFQs []RFQ `json:"rfqs"`
}

// PricingBenchmark is the result of market_pricing_benchmark
type PricingBenchmark struct {
	AvgCoupon     float64 `json:"avg_coupon"`
	MedianBarrier float64 `json:"median_barrier"`
}

// ExposureImpact is the result of desk_exposure_impact
type ExposureImpact struct {
	VegaImpactUSD  float64  `json:"vega_impact_usd"`
	CorrelatesWith []string `json:"correlates_with"`
}

// DeskDispatcher serves the simulated trading-desk tools with fixed
// payloads. It stands in for the desk's live pricing and risk systems.
type DeskDispatcher struct{}

// NewDeskDispatcher creates the simulated desk tool dispatcher
func NewDeskDispatcher() *DeskDispatcher {
	return &DeskDispatcher{}
}

// Call dispatches a tool call by name
func (d *DeskDispatcher) Call(ctx context.Context, toolName string, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch toolName {
	case "get_client_rfq_history":
		return RFQHistory{RFQs: []RFQ{
			{ID: "R1", Underlying: "TSLA", Tenor: "2Y", Coupon: 9.5, Status: "won"},
			{ID: "R2", Underlying: "NVDA", Tenor: "1Y", Coupon: 8.0, Status: "lost"},
		}}, nil
	case "market_pricing_benchmark":
		return PricingBenchmark{AvgCoupon: 9.2, MedianBarrier: 75.0}, nil
	case "desk_exposure_impact":
		return ExposureImpact{VegaImpactUSD: 1200000, CorrelatesWith: []string{"META"}}, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", toolName)
}

// SimulatedDeskAgent adapts the executor's simulated turn to the
// query-style agent contract used by the evaluator.
type SimulatedDeskAgent struct {
	exec *Executor
}

// NewSimulatedDeskAgent wraps an executor as a queryable agent
func NewSimulatedDeskAgent(exec *Executor) *SimulatedDeskAgent {
	return &SimulatedDeskAgent{exec: exec}
}

// Query runs one simulated turn for the given text
func (a *SimulatedDeskAgent) Query(ctx context.Context, text string) (string, error) {
	return a.exec.RunAgent(ctx, text, nil)
}

// RecordedCalls exposes the tool calls made during queries so far
func (a *SimulatedDeskAgent) RecordedCalls() []domain.ToolCallRecord {
	return a.exec.RecordedCalls()
}
