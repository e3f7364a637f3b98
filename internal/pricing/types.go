package pricing

import (
	"sort"
	"time"
)

// ConsumptionRecord is one household meter observation.
type ConsumptionRecord struct {
	HouseholdID    int64
	Timestamp      time.Time
	ConsumptionKWh float64
}

// PricePoint assigns a price per kWh to a single timestamp.
type PricePoint struct {
	Timestamp   time.Time
	PricePerKWh float64
}

// PriceCurve is the full assignment of prices to the pricing horizon,
// ordered by timestamp. It carries exactly one price per distinct timestamp
// of the consumption series it was derived from.
type PriceCurve []PricePoint

// Index returns a lookup table keyed by UnixNano. time.Time values are not
// safe map keys (monotonic reading, location pointer), so joins go through
// the nanosecond instant instead.
func (c PriceCurve) Index() map[int64]float64 {
	index := make(map[int64]float64, len(c))
	for _, point := range c {
		index[point.Timestamp.UnixNano()] = point.PricePerKWh
	}
	return index
}

// Prices returns the raw price values in curve order.
func (c PriceCurve) Prices() []float64 {
	values := make([]float64, len(c))
	for i, point := range c {
		values[i] = point.PricePerKWh
	}
	return values
}

// HouseholdCost aggregates one household's spend over the horizon.
type HouseholdCost struct {
	HouseholdID      int64
	TotalCost        float64
	TotalConsumption float64
	AvgCostPerKWh    float64
}

// FairnessMetrics is a snapshot of inequality measures over household unit
// costs for one price curve.
type FairnessMetrics struct {
	GiniCoefficient        float64
	CoefficientOfVariation float64
	MinCostPerKWh          float64
	MaxCostPerKWh          float64
	MeanCostPerKWh         float64
	MedianCostPerKWh       float64
	StdCostPerKWh          float64
}

// RecoverySummary reports how closely a curve reproduces its revenue target.
type RecoverySummary struct {
	TotalRevenue     float64
	Target           float64
	Percentage       float64
	TotalConsumption float64
	AvgPricePerKWh   float64
}

// UniqueTimestamps extracts the distinct timestamps of a consumption series
// in ascending order.
func UniqueTimestamps(records []ConsumptionRecord) []time.Time {
	seen := make(map[int64]time.Time, len(records))
	for _, rec := range records {
		seen[rec.Timestamp.UnixNano()] = rec.Timestamp
	}

	timestamps := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})
	return timestamps
}

// TotalConsumption sums consumption across the whole series.
func TotalConsumption(records []ConsumptionRecord) float64 {
	var total float64
	for _, rec := range records {
		total += rec.ConsumptionKWh
	}
	return total
}

// LoadByTimestamp aggregates system load per timestamp.
func LoadByTimestamp(records []ConsumptionRecord) map[int64]float64 {
	load := make(map[int64]float64)
	for _, rec := range records {
		load[rec.Timestamp.UnixNano()] += rec.ConsumptionKWh
	}
	return load
}
