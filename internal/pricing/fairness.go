package pricing

import (
	"math"
	"sort"
)

// GiniCoefficient measures inequality over a distribution of unit costs.
// 0 means perfect equality, 1 maximal inequality. NaN and infinite entries
// are filtered before computing; an empty or zero-sum distribution yields 0.
func GiniCoefficient(values []float64) float64 {
	finite := filterFinite(values)
	if len(finite) == 0 {
		return 0
	}

	sorted := make([]float64, len(finite))
	copy(sorted, finite)
	sort.Float64s(sorted)

	n := len(sorted)
	var total float64
	for _, v := range sorted {
		total += v
	}
	if total == 0 {
		return 0
	}

	// All-equal inputs return exactly 0 rather than the formula's residue.
	if sorted[0] == sorted[n-1] {
		return 0
	}

	var rankWeighted float64
	for i, v := range sorted {
		rankWeighted += float64(i+1) * v
	}

	gini := 2*rankWeighted/(float64(n)*total) - float64(n+1)/float64(n)
	return clamp(gini, 0, 1)
}

// CoefficientOfVariation is the population standard deviation divided by the
// mean, with 0 by convention when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	finite := filterFinite(values)
	if len(finite) == 0 {
		return 0
	}

	mean := meanOf(finite)
	if mean == 0 {
		return 0
	}
	return populationStd(finite, mean) / mean
}

// HouseholdCosts joins a consumption series with a price curve by exact
// timestamp and reduces to per-household totals. Records without a matching
// price are dropped. A household whose matched consumption sums to zero is
// reported with zero cost and unit cost.
func HouseholdCosts(records []ConsumptionRecord, curve PriceCurve) []HouseholdCost {
	prices := curve.Index()

	type accumulator struct {
		cost        float64
		consumption float64
	}
	byHousehold := make(map[int64]*accumulator)

	for _, rec := range records {
		price, ok := prices[rec.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		acc := byHousehold[rec.HouseholdID]
		if acc == nil {
			acc = &accumulator{}
			byHousehold[rec.HouseholdID] = acc
		}
		acc.cost += rec.ConsumptionKWh * price
		acc.consumption += rec.ConsumptionKWh
	}

	costs := make([]HouseholdCost, 0, len(byHousehold))
	for id, acc := range byHousehold {
		cost := HouseholdCost{
			HouseholdID:      id,
			TotalCost:        acc.cost,
			TotalConsumption: acc.consumption,
		}
		if acc.consumption > 0 {
			cost.AvgCostPerKWh = acc.cost / acc.consumption
		}
		costs = append(costs, cost)
	}

	sort.Slice(costs, func(i, j int) bool {
		return costs[i].HouseholdID < costs[j].HouseholdID
	})
	return costs
}

// Metrics computes the fairness snapshot over household unit costs.
// Zero-consumption households carry an undefined unit cost and are excluded.
// Empty input yields all-zero metrics; callers must not read that as
// "perfectly fair" when it really means "no data".
func Metrics(costs []HouseholdCost) FairnessMetrics {
	unitCosts := make([]float64, 0, len(costs))
	for _, c := range costs {
		if c.TotalConsumption <= 0 {
			continue
		}
		unitCosts = append(unitCosts, c.AvgCostPerKWh)
	}

	finite := filterFinite(unitCosts)
	if len(finite) == 0 {
		return FairnessMetrics{}
	}

	sorted := make([]float64, len(finite))
	copy(sorted, finite)
	sort.Float64s(sorted)

	mean := meanOf(finite)

	return FairnessMetrics{
		GiniCoefficient:        GiniCoefficient(finite),
		CoefficientOfVariation: CoefficientOfVariation(finite),
		MinCostPerKWh:          sorted[0],
		MaxCostPerKWh:          sorted[len(sorted)-1],
		MeanCostPerKWh:         mean,
		MedianCostPerKWh:       medianOfSorted(sorted),
		StdCostPerKWh:          populationStd(finite, mean),
	}
}

// Score joins, aggregates, and measures a curve against a consumption series.
func Score(records []ConsumptionRecord, curve PriceCurve) ([]HouseholdCost, FairnessMetrics) {
	costs := HouseholdCosts(records, curve)
	return costs, Metrics(costs)
}

// Outliers reports the n highest and n lowest unit-cost households.
func Outliers(costs []HouseholdCost, n int) (highest, lowest []HouseholdCost) {
	if n <= 0 || len(costs) == 0 {
		return nil, nil
	}

	sorted := make([]HouseholdCost, len(costs))
	copy(sorted, costs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AvgCostPerKWh < sorted[j].AvgCostPerKWh
	})

	if n > len(sorted) {
		n = len(sorted)
	}

	lowest = append(lowest, sorted[:n]...)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		highest = append(highest, sorted[i])
	}
	return highest, lowest
}

func filterFinite(values []float64) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite = append(finite, v)
	}
	return finite
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func populationStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

func medianOfSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
