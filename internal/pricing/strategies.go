package pricing

import (
	"fmt"
	"strings"
	"time"
)

// StrategyKind names one of the closed set of tariff strategies.
type StrategyKind string

const (
	// StrategyFlat charges a single price at every timestamp.
	StrategyFlat StrategyKind = "flat"
	// StrategyTOU charges peak/off-peak prices by hour of day.
	StrategyTOU StrategyKind = "tou"
	// StrategyDynamic scales prices with aggregate system load.
	StrategyDynamic StrategyKind = "dynamic"
)

// ParseStrategyKind maps user input onto a StrategyKind.
func ParseStrategyKind(s string) (StrategyKind, error) {
	switch StrategyKind(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFlat:
		return StrategyFlat, nil
	case StrategyTOU:
		return StrategyTOU, nil
	case StrategyDynamic:
		return StrategyDynamic, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (available: flat, tou, dynamic)", s)
	}
}

// StrategyParams carries the per-strategy tuning knobs. Zero values are
// replaced by defaults; only the fields relevant to the selected strategy
// are consulted.
type StrategyParams struct {
	// Time-of-use.
	PeakHours         []int
	PeakMultiplier    float64
	OffPeakMultiplier float64
	// Dynamic load.
	MinMultiplier float64
	MaxMultiplier float64
}

func (p StrategyParams) withDefaults() StrategyParams {
	if len(p.PeakHours) == 0 {
		p.PeakHours = []int{7, 8, 17, 18, 19, 20, 21}
	}
	if p.PeakMultiplier == 0 {
		p.PeakMultiplier = 1.5
	}
	if p.OffPeakMultiplier == 0 {
		p.OffPeakMultiplier = 0.7
	}
	if p.MinMultiplier == 0 {
		p.MinMultiplier = 0.5
	}
	if p.MaxMultiplier == 0 {
		p.MaxMultiplier = 2.0
	}
	return p
}

// CalculatePrices derives a price curve from a consumption series and a cost
// recovery target using the selected strategy. The returned curve carries
// exactly one price per distinct timestamp of the input series.
func CalculatePrices(kind StrategyKind, records []ConsumptionRecord, target float64, params StrategyParams) (PriceCurve, error) {
	params = params.withDefaults()

	switch kind {
	case StrategyFlat:
		return flatPrices(records, target), nil
	case StrategyTOU:
		return timeOfUsePrices(records, target, params), nil
	case StrategyDynamic:
		return dynamicPrices(records, target, params), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}

// flatPrices replicates target / total consumption across the horizon.
func flatPrices(records []ConsumptionRecord, target float64) PriceCurve {
	timestamps := UniqueTimestamps(records)
	total := TotalConsumption(records)

	var rate float64
	if total > 0 {
		rate = target / total
	}

	curve := make(PriceCurve, len(timestamps))
	for i, ts := range timestamps {
		curve[i] = PricePoint{Timestamp: ts, PricePerKWh: rate}
	}
	return curve
}

// timeOfUsePrices solves base · (mp·Cp + mo·Co) = target for the base price,
// then applies the peak or off-peak multiplier per timestamp. Hits the target
// exactly by construction. Peak membership is evaluated on the UTC hour.
func timeOfUsePrices(records []ConsumptionRecord, target float64, params StrategyParams) PriceCurve {
	peak := make(map[int]bool, len(params.PeakHours))
	for _, h := range params.PeakHours {
		peak[h] = true
	}

	var peakConsumption, offPeakConsumption float64
	for _, rec := range records {
		if peak[rec.Timestamp.UTC().Hour()] {
			peakConsumption += rec.ConsumptionKWh
		} else {
			offPeakConsumption += rec.ConsumptionKWh
		}
	}

	weighted := params.PeakMultiplier*peakConsumption + params.OffPeakMultiplier*offPeakConsumption
	var base float64
	if weighted > 0 {
		base = target / weighted
	}

	timestamps := UniqueTimestamps(records)
	curve := make(PriceCurve, len(timestamps))
	for i, ts := range timestamps {
		multiplier := params.OffPeakMultiplier
		if peak[ts.UTC().Hour()] {
			multiplier = params.PeakMultiplier
		}
		curve[i] = PricePoint{Timestamp: ts, PricePerKWh: base * multiplier}
	}
	return curve
}

// dynamicPrices maps min-max normalised system load onto a multiplier range
// and applies it to the flat base price. Per-timestamp multipliers over a
// single base do not reproduce the target exactly, so a final rescale pass
// multiplies every price by target/realised revenue.
func dynamicPrices(records []ConsumptionRecord, target float64, params StrategyParams) PriceCurve {
	timestamps := UniqueTimestamps(records)
	load := LoadByTimestamp(records)

	minLoad, maxLoad := loadRange(timestamps, load)

	total := TotalConsumption(records)
	var base float64
	if total > 0 {
		base = target / total
	}

	curve := make(PriceCurve, len(timestamps))
	for i, ts := range timestamps {
		normalized := 0.5 // zero load variance
		if maxLoad > minLoad {
			normalized = (load[ts.UnixNano()] - minLoad) / (maxLoad - minLoad)
		}
		multiplier := params.MinMultiplier + (params.MaxMultiplier-params.MinMultiplier)*normalized
		curve[i] = PricePoint{Timestamp: ts, PricePerKWh: base * multiplier}
	}

	realized := curveRevenue(records, curve)
	if realized > 0 {
		factor := target / realized
		for i := range curve {
			curve[i].PricePerKWh *= factor
		}
	}
	return curve
}

// ValidateCostRecovery re-joins a curve with the consumption series and
// reports realised revenue against the target. Every strategy self-reports
// accuracy this way, independent of how the curve was derived.
func ValidateCostRecovery(records []ConsumptionRecord, curve PriceCurve, target float64) RecoverySummary {
	prices := curve.Index()

	var revenue, consumption float64
	for _, rec := range records {
		price, ok := prices[rec.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		revenue += rec.ConsumptionKWh * price
		consumption += rec.ConsumptionKWh
	}

	summary := RecoverySummary{
		TotalRevenue:     revenue,
		Target:           target,
		TotalConsumption: consumption,
	}
	if target > 0 {
		summary.Percentage = revenue / target * 100
	}
	if consumption > 0 {
		summary.AvgPricePerKWh = revenue / consumption
	}
	return summary
}

func curveRevenue(records []ConsumptionRecord, curve PriceCurve) float64 {
	prices := curve.Index()
	var revenue float64
	for _, rec := range records {
		if price, ok := prices[rec.Timestamp.UnixNano()]; ok {
			revenue += rec.ConsumptionKWh * price
		}
	}
	return revenue
}

func loadRange(timestamps []time.Time, load map[int64]float64) (minLoad, maxLoad float64) {
	for i, ts := range timestamps {
		v := load[ts.UnixNano()]
		if i == 0 || v < minLoad {
			minLoad = v
		}
		if i == 0 || v > maxLoad {
			maxLoad = v
		}
	}
	return minLoad, maxLoad
}
