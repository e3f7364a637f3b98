package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tariff-optimizer/internal/pricing"
)

func testSeries(consumptions []float64) []pricing.ConsumptionRecord {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := make([]pricing.ConsumptionRecord, len(consumptions))
	for i, c := range consumptions {
		records[i] = pricing.ConsumptionRecord{
			HouseholdID:    1,
			Timestamp:      start.Add(time.Duration(i) * time.Hour),
			ConsumptionKWh: c,
		}
	}
	return records
}

func testOptimizer() *Optimizer {
	return New(zerolog.Nop())
}

func TestOptimizeRegulatedMeetsFloor(t *testing.T) {
	records := testSeries([]float64{3, 3, 4})
	opts := Options{
		CostRecoveryTarget: 2.0,
		FairnessWeight:     0.5,
		ProfitWeight:       0.5,
		MinPrice:           0.05,
		MaxPrice:           0.50,
	}

	outcome, err := testOptimizer().Optimize(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("feasible problem should solve: %v", err)
	}
	if outcome.Status != StatusOptimal {
		t.Fatalf("expected Optimal, got %s", outcome.Status)
	}
	if len(outcome.Curve) != 3 {
		t.Fatalf("expected one price per timestamp, got %d", len(outcome.Curve))
	}
	if outcome.TotalRevenue < opts.CostRecoveryTarget-1e-6 {
		t.Fatalf("regulated revenue must meet the floor: %f < %f", outcome.TotalRevenue, opts.CostRecoveryTarget)
	}
	for _, point := range outcome.Curve {
		if point.PricePerKWh < opts.MinPrice-1e-9 || point.PricePerKWh > opts.MaxPrice+1e-9 {
			t.Fatalf("price %f outside bounds [%f,%f]", point.PricePerKWh, opts.MinPrice, opts.MaxPrice)
		}
	}
}

func TestOptimizeFairnessWeightOrdersPriceSpread(t *testing.T) {
	// Uneven load makes the profit term favour uneven prices; raising the
	// fairness weight must never widen the spread. Also pins down that every
	// blend solves to optimality rather than tripping a spurious solver error.
	records := testSeries([]float64{1, 6, 2, 9})

	var prevDeviation float64
	for i, fairness := range []float64{0, 0.25, 0.5, 0.75, 1} {
		opts := Options{
			CostRecoveryTarget: 4.0,
			FairnessWeight:     fairness,
			ProfitWeight:       1 - fairness,
			MinPrice:           0.05,
			MaxPrice:           0.50,
		}

		outcome, err := testOptimizer().Optimize(context.Background(), records, opts)
		if err != nil {
			t.Fatalf("fairness weight %.2f should solve: %v", fairness, err)
		}
		if outcome.Status != StatusOptimal {
			t.Fatalf("fairness weight %.2f: expected Optimal, got %s", fairness, outcome.Status)
		}

		deviation := totalAbsDeviation(outcome.Curve.Prices())
		if i > 0 && deviation > prevDeviation+1e-9 {
			t.Fatalf("price spread grew from %f to %f as fairness weight rose to %.2f",
				prevDeviation, deviation, fairness)
		}
		prevDeviation = deviation
	}
}

func totalAbsDeviation(prices []float64) float64 {
	mean := meanOf(prices)
	var total float64
	for _, p := range prices {
		total += math.Abs(p - mean)
	}
	return total
}

func TestOptimizePureFairnessFlattens(t *testing.T) {
	records := testSeries([]float64{1, 5, 2, 8})
	opts := Options{
		CostRecoveryTarget: 4.0,
		FairnessWeight:     1,
		ProfitWeight:       0,
		MinPrice:           0.05,
		MaxPrice:           0.50,
	}

	outcome, err := testOptimizer().Optimize(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("feasible problem should solve: %v", err)
	}
	if outcome.PriceStd > 1e-6 {
		t.Fatalf("pure fairness should produce an all-equal curve, std %f", outcome.PriceStd)
	}
	if outcome.TotalRevenue < opts.CostRecoveryTarget-1e-6 {
		t.Fatalf("revenue must still meet the floor: %f", outcome.TotalRevenue)
	}
}

func TestOptimizeInfeasible(t *testing.T) {
	// 100 kWh capped at 0.10/kWh can never recover a million.
	records := testSeries([]float64{40, 30, 30})
	opts := Options{
		CostRecoveryTarget: 1e6,
		FairnessWeight:     0.5,
		ProfitWeight:       0.5,
		MinPrice:           0.05,
		MaxPrice:           0.10,
	}

	_, err := testOptimizer().Optimize(context.Background(), records, opts)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got %v", err)
	}
}

func TestOptimizeMarketStaysInBand(t *testing.T) {
	records := testSeries([]float64{10, 10, 10, 10})
	opts := Options{
		CostRecoveryTarget: 6.0,
		FairnessWeight:     0,
		ProfitWeight:       1,
		MinPrice:           0.05,
		MaxPrice:           0.50,
		Mode:               ModeMarket,
		MinCostRecoveryPct: 100,
		MaxCostRecoveryPct: 110,
	}

	outcome, err := testOptimizer().Optimize(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("feasible problem should solve: %v", err)
	}

	floor := opts.CostRecoveryTarget * opts.MinCostRecoveryPct / 100
	cap := opts.CostRecoveryTarget * opts.MaxCostRecoveryPct / 100
	if outcome.TotalRevenue < floor-1e-6 || outcome.TotalRevenue > cap+1e-6 {
		t.Fatalf("market revenue %f outside band [%f,%f]", outcome.TotalRevenue, floor, cap)
	}
}

func TestOptimizeWeightRenormalization(t *testing.T) {
	records := testSeries([]float64{3, 3, 3})
	opts := Options{
		CostRecoveryTarget: 2.0,
		FairnessWeight:     0.8,
		ProfitWeight:       0.8,
		MinPrice:           0.05,
		MaxPrice:           0.50,
	}

	outcome, err := testOptimizer().Optimize(context.Background(), records, opts)
	if err != nil {
		t.Fatalf("feasible problem should solve: %v", err)
	}
	if math.Abs(outcome.FairnessWeight-0.5) > 1e-9 || math.Abs(outcome.ProfitWeight-0.5) > 1e-9 {
		t.Fatalf("weights summing above 1 should renormalize proportionally: %f / %f",
			outcome.FairnessWeight, outcome.ProfitWeight)
	}
}

func TestOptimizeConfigurationErrors(t *testing.T) {
	records := testSeries([]float64{1, 1})
	base := Options{
		CostRecoveryTarget: 1.0,
		MinPrice:           0.05,
		MaxPrice:           0.50,
	}

	cases := []struct {
		name   string
		mutate func(Options) Options
	}{
		{"fairness weight above 1", func(o Options) Options { o.FairnessWeight = 1.5; return o }},
		{"negative profit weight", func(o Options) Options { o.ProfitWeight = -0.1; return o }},
		{"inverted price bounds", func(o Options) Options { o.MinPrice, o.MaxPrice = 0.5, 0.05; return o }},
		{"inverted recovery band", func(o Options) Options {
			o.Mode = ModeMarket
			o.MinCostRecoveryPct, o.MaxCostRecoveryPct = 120, 110
			return o
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := testOptimizer().Optimize(context.Background(), records, tc.mutate(base))
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestOptimizeDegenerateInput(t *testing.T) {
	opts := Options{
		CostRecoveryTarget: 1.0,
		MinPrice:           0.05,
		MaxPrice:           0.50,
	}

	var degErr *DegenerateInputError

	_, err := testOptimizer().Optimize(context.Background(), nil, opts)
	if !errors.As(err, &degErr) {
		t.Fatalf("empty series should fail with DegenerateInputError, got %v", err)
	}

	_, err = testOptimizer().Optimize(context.Background(), testSeries([]float64{0, 0}), opts)
	if !errors.As(err, &degErr) {
		t.Fatalf("zero consumption should fail with DegenerateInputError, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("Regulated"); err != nil {
		t.Fatalf("regulated should parse: %v", err)
	}
	if _, err := ParseMode(" market "); err != nil {
		t.Fatalf("market should parse: %v", err)
	}
	if _, err := ParseMode("hybrid"); err == nil {
		t.Fatal("unknown mode should error")
	}
}
