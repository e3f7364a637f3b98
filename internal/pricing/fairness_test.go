package pricing

import (
	"math"
	"testing"
	"time"
)

func TestGiniCoefficientAllEqual(t *testing.T) {
	if g := GiniCoefficient([]float64{0.3, 0.3, 0.3, 0.3}); g != 0 {
		t.Fatalf("equal distribution should be exactly 0, got %f", g)
	}
}

func TestGiniCoefficientKnownValue(t *testing.T) {
	// One household carries all the cost: G = 2*4/(4*1) - 5/4 = 0.75.
	g := GiniCoefficient([]float64{0, 0, 0, 1})
	if math.Abs(g-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", g)
	}
}

func TestGiniCoefficientBounds(t *testing.T) {
	cases := [][]float64{
		{},
		{0, 0, 0},
		{1},
		{0.1, 0.2, 0.3, 0.4},
		{1, 100, 10000},
	}
	for _, values := range cases {
		g := GiniCoefficient(values)
		if g < 0 || g > 1 {
			t.Fatalf("gini %f outside [0,1] for %v", g, values)
		}
	}
}

func TestGiniCoefficientFiltersNonFinite(t *testing.T) {
	g := GiniCoefficient([]float64{0.2, math.NaN(), 0.2, math.Inf(1)})
	if g != 0 {
		t.Fatalf("non-finite entries should be dropped before computing, got %f", g)
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	if cv := CoefficientOfVariation([]float64{2, 2, 2}); cv != 0 {
		t.Fatalf("no spread should give 0, got %f", cv)
	}
	if cv := CoefficientOfVariation(nil); cv != 0 {
		t.Fatalf("empty input should give 0, got %f", cv)
	}
	if cv := CoefficientOfVariation([]float64{-1, 1}); cv != 0 {
		t.Fatalf("zero mean should give 0 by convention, got %f", cv)
	}

	// mean 2, population std 1
	cv := CoefficientOfVariation([]float64{1, 3})
	if math.Abs(cv-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %f", cv)
	}
}

func TestHouseholdCostsJoin(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	unpriced := t0.Add(2 * time.Hour)

	records := []ConsumptionRecord{
		{HouseholdID: 1, Timestamp: t0, ConsumptionKWh: 2},
		{HouseholdID: 1, Timestamp: t1, ConsumptionKWh: 2},
		{HouseholdID: 2, Timestamp: t0, ConsumptionKWh: 4},
		{HouseholdID: 2, Timestamp: unpriced, ConsumptionKWh: 100},
	}
	curve := PriceCurve{
		{Timestamp: t0, PricePerKWh: 0.10},
		{Timestamp: t1, PricePerKWh: 0.30},
	}

	costs := HouseholdCosts(records, curve)
	if len(costs) != 2 {
		t.Fatalf("expected 2 households, got %d", len(costs))
	}

	// Household 1: 2*0.10 + 2*0.30 = 0.80 over 4 kWh.
	if math.Abs(costs[0].TotalCost-0.80) > 1e-9 {
		t.Fatalf("household 1 total cost: %f", costs[0].TotalCost)
	}
	if math.Abs(costs[0].AvgCostPerKWh-0.20) > 1e-9 {
		t.Fatalf("household 1 unit cost: %f", costs[0].AvgCostPerKWh)
	}

	// Household 2: the unpriced timestamp must not contribute.
	if costs[1].TotalConsumption != 4 {
		t.Fatalf("household 2 consumption should drop unpriced records, got %f", costs[1].TotalConsumption)
	}
	if math.Abs(costs[1].TotalCost-0.40) > 1e-9 {
		t.Fatalf("household 2 total cost: %f", costs[1].TotalCost)
	}
}

func TestHouseholdCostsZeroConsumption(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []ConsumptionRecord{
		{HouseholdID: 7, Timestamp: t0, ConsumptionKWh: 0},
	}
	curve := PriceCurve{{Timestamp: t0, PricePerKWh: 0.25}}

	costs := HouseholdCosts(records, curve)
	if len(costs) != 1 {
		t.Fatalf("expected 1 household, got %d", len(costs))
	}
	if costs[0].TotalCost != 0 || costs[0].AvgCostPerKWh != 0 {
		t.Fatalf("zero-consumption household should carry zero costs: %+v", costs[0])
	}
}

func TestMetricsEmpty(t *testing.T) {
	m := Metrics(nil)
	if m != (FairnessMetrics{}) {
		t.Fatalf("empty input should yield all-zero metrics: %+v", m)
	}
}

func TestMetricsExcludesZeroConsumption(t *testing.T) {
	costs := []HouseholdCost{
		{HouseholdID: 1, TotalCost: 1, TotalConsumption: 10, AvgCostPerKWh: 0.1},
		{HouseholdID: 2, TotalCost: 3, TotalConsumption: 10, AvgCostPerKWh: 0.3},
		{HouseholdID: 3, TotalCost: 0, TotalConsumption: 0, AvgCostPerKWh: 0},
	}

	m := Metrics(costs)
	if math.Abs(m.MeanCostPerKWh-0.2) > 1e-9 {
		t.Fatalf("zero-consumption household should be excluded from mean: %f", m.MeanCostPerKWh)
	}
	if m.MinCostPerKWh != 0.1 || m.MaxCostPerKWh != 0.3 {
		t.Fatalf("min/max wrong: %f / %f", m.MinCostPerKWh, m.MaxCostPerKWh)
	}
	if math.Abs(m.MedianCostPerKWh-0.2) > 1e-9 {
		t.Fatalf("median wrong: %f", m.MedianCostPerKWh)
	}
}

func TestOutliers(t *testing.T) {
	costs := []HouseholdCost{
		{HouseholdID: 1, AvgCostPerKWh: 0.10},
		{HouseholdID: 2, AvgCostPerKWh: 0.50},
		{HouseholdID: 3, AvgCostPerKWh: 0.30},
		{HouseholdID: 4, AvgCostPerKWh: 0.20},
	}

	highest, lowest := Outliers(costs, 2)
	if len(highest) != 2 || len(lowest) != 2 {
		t.Fatalf("expected 2 each, got %d / %d", len(highest), len(lowest))
	}
	if highest[0].HouseholdID != 2 || highest[1].HouseholdID != 3 {
		t.Fatalf("highest wrong: %+v", highest)
	}
	if lowest[0].HouseholdID != 1 || lowest[1].HouseholdID != 4 {
		t.Fatalf("lowest wrong: %+v", lowest)
	}

	highest, lowest = Outliers(costs, 10)
	if len(highest) != 4 || len(lowest) != 4 {
		t.Fatalf("n above population should clamp: %d / %d", len(highest), len(lowest))
	}

	highest, lowest = Outliers(nil, 2)
	if highest != nil || lowest != nil {
		t.Fatal("empty input should yield nil slices")
	}
}
