package pricing

import (
	"math"
	"testing"
	"time"
)

// twoHouseholdSeries builds the canonical scenario: two households consuming
// 1 and 2 kWh at each of three hourly timestamps.
func twoHouseholdSeries() []ConsumptionRecord {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := make([]ConsumptionRecord, 0, 6)
	for i := 0; i < 3; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		records = append(records,
			ConsumptionRecord{HouseholdID: 1, Timestamp: ts, ConsumptionKWh: 1},
			ConsumptionRecord{HouseholdID: 2, Timestamp: ts, ConsumptionKWh: 2},
		)
	}
	return records
}

func TestParseStrategyKind(t *testing.T) {
	for _, input := range []string{"flat", "TOU", " dynamic "} {
		if _, err := ParseStrategyKind(input); err != nil {
			t.Fatalf("%q should parse: %v", input, err)
		}
	}
	if _, err := ParseStrategyKind("surge"); err == nil {
		t.Fatal("unknown strategy should error")
	}
}

func TestFlatPricesExactRecovery(t *testing.T) {
	records := twoHouseholdSeries()
	target := 3.0

	curve, err := CalculatePrices(StrategyFlat, records, target, StrategyParams{})
	if err != nil {
		t.Fatalf("flat strategy failed: %v", err)
	}
	if len(curve) != 3 {
		t.Fatalf("expected one price per timestamp, got %d", len(curve))
	}

	// 9 kWh total, so every price is 3/9.
	for _, point := range curve {
		if math.Abs(point.PricePerKWh-1.0/3.0) > 1e-9 {
			t.Fatalf("flat price wrong at %s: %f", point.Timestamp, point.PricePerKWh)
		}
	}

	recovery := ValidateCostRecovery(records, curve, target)
	if math.Abs(recovery.TotalRevenue-target) > 1e-9 {
		t.Fatalf("flat revenue should hit target exactly: %f", recovery.TotalRevenue)
	}
	if math.Abs(recovery.Percentage-100) > 1e-6 {
		t.Fatalf("recovery percentage: %f", recovery.Percentage)
	}
}

func TestTimeOfUsePricesExactRecovery(t *testing.T) {
	start := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	records := make([]ConsumptionRecord, 0, 4)
	for i := 0; i < 4; i++ {
		// Hours 6..9 UTC, so 7 and 8 are peak under the defaults.
		records = append(records, ConsumptionRecord{
			HouseholdID:    1,
			Timestamp:      start.Add(time.Duration(i) * time.Hour),
			ConsumptionKWh: 5,
		})
	}
	target := 6.0

	curve, err := CalculatePrices(StrategyTOU, records, target, StrategyParams{})
	if err != nil {
		t.Fatalf("tou strategy failed: %v", err)
	}

	prices := curve.Index()
	peakPrice := prices[start.Add(time.Hour).UnixNano()]
	offPeakPrice := prices[start.UnixNano()]
	if math.Abs(peakPrice/offPeakPrice-1.5/0.7) > 1e-9 {
		t.Fatalf("peak/off-peak ratio should follow the multipliers: %f / %f", peakPrice, offPeakPrice)
	}

	recovery := ValidateCostRecovery(records, curve, target)
	if math.Abs(recovery.TotalRevenue-target) > 1e-9 {
		t.Fatalf("tou revenue should hit target exactly: %f", recovery.TotalRevenue)
	}
}

func TestDynamicPricesRescaleToTarget(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []ConsumptionRecord{
		{HouseholdID: 1, Timestamp: start, ConsumptionKWh: 1},
		{HouseholdID: 1, Timestamp: start.Add(time.Hour), ConsumptionKWh: 4},
		{HouseholdID: 1, Timestamp: start.Add(2 * time.Hour), ConsumptionKWh: 10},
	}
	target := 4.5

	curve, err := CalculatePrices(StrategyDynamic, records, target, StrategyParams{})
	if err != nil {
		t.Fatalf("dynamic strategy failed: %v", err)
	}

	recovery := ValidateCostRecovery(records, curve, target)
	if math.Abs(recovery.TotalRevenue-target) > 1e-9 {
		t.Fatalf("dynamic revenue should rescale onto the target: %f", recovery.TotalRevenue)
	}

	// Higher load hours must be priced higher.
	prices := curve.Prices()
	if !(prices[0] < prices[1] && prices[1] < prices[2]) {
		t.Fatalf("prices should follow load: %v", prices)
	}
}

func TestDynamicPricesZeroVariance(t *testing.T) {
	records := twoHouseholdSeries()
	target := 3.0

	curve, err := CalculatePrices(StrategyDynamic, records, target, StrategyParams{})
	if err != nil {
		t.Fatalf("dynamic strategy failed: %v", err)
	}

	// Uniform load pins every multiplier at the midpoint, so the curve
	// collapses to flat pricing after the rescale.
	prices := curve.Prices()
	for _, p := range prices[1:] {
		if math.Abs(p-prices[0]) > 1e-9 {
			t.Fatalf("zero load variance should yield a flat curve: %v", prices)
		}
	}

	recovery := ValidateCostRecovery(records, curve, target)
	if math.Abs(recovery.TotalRevenue-target) > 1e-9 {
		t.Fatalf("revenue should hit target: %f", recovery.TotalRevenue)
	}
}

func TestValidateCostRecoverySummary(t *testing.T) {
	records := twoHouseholdSeries()
	curve, err := CalculatePrices(StrategyFlat, records, 3.0, StrategyParams{})
	if err != nil {
		t.Fatalf("flat strategy failed: %v", err)
	}

	summary := ValidateCostRecovery(records, curve, 6.0)
	if math.Abs(summary.Percentage-50) > 1e-6 {
		t.Fatalf("revenue 3 against target 6 should report 50%%: %f", summary.Percentage)
	}
	if summary.TotalConsumption != 9 {
		t.Fatalf("total consumption: %f", summary.TotalConsumption)
	}
	if math.Abs(summary.AvgPricePerKWh-1.0/3.0) > 1e-9 {
		t.Fatalf("average price: %f", summary.AvgPricePerKWh)
	}
}
