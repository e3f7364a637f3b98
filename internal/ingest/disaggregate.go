package ingest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"tariff-optimizer/internal/fetcher"
	"tariff-optimizer/internal/pricing"
)

// Options tune the synthetic household disaggregation.
type Options struct {
	// Households is the number of synthetic households to split load across.
	Households int
	// HouseholdFraction is the share of national load attributed to the
	// household sector.
	HouseholdFraction float64
}

// Disaggregate converts country-level load points (MW) into per-household
// consumption records (kWh). The split follows a Dirichlet(2) distribution
// seeded deterministically per timestamp, so re-ingesting the same window
// reproduces the same households.
func Disaggregate(points []fetcher.LoadPoint, opts Options) ([]pricing.ConsumptionRecord, error) {
	if opts.Households <= 0 {
		return nil, errors.New("ingest: households must be positive")
	}
	if opts.HouseholdFraction <= 0 || opts.HouseholdFraction > 1 {
		return nil, errors.New("ingest: household fraction must be within (0,1]")
	}
	if len(points) == 0 {
		return nil, errors.New("ingest: empty load series")
	}

	records := make([]pricing.ConsumptionRecord, 0, len(points)*opts.Households)
	for _, point := range points {
		if point.LoadMW < 0 {
			return nil, fmt.Errorf("ingest: negative load %.3f MW at %s", point.LoadMW, point.Timestamp)
		}

		// MW over one interval ≈ MWh; ×1000 for kWh, scaled to the
		// household sector share.
		totalKWh := point.LoadMW * 1000 * opts.HouseholdFraction

		proportions := dirichletSplit(point.Timestamp.Unix(), opts.Households)
		for id, share := range proportions {
			records = append(records, pricing.ConsumptionRecord{
				HouseholdID:    int64(id),
				Timestamp:      point.Timestamp,
				ConsumptionKWh: roundKWh(share * totalKWh),
			})
		}
	}
	return records, nil
}

// dirichletSplit draws a Dirichlet(α=2) proportion vector: Gamma(2) samples
// (sum of two exponentials) normalised to 1. Seeded per timestamp so the
// split is deterministic but varies across the horizon.
func dirichletSplit(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed % (1 << 31)))

	weights := make([]float64, n)
	var total float64
	for i := range weights {
		g := -math.Log(1-rng.Float64()) - math.Log(1-rng.Float64())
		weights[i] = g
		total += g
	}
	if total == 0 {
		uniform := 1 / float64(n)
		for i := range weights {
			weights[i] = uniform
		}
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// GapCount reports how many adjacent timestamp pairs deviate from hourly
// spacing. The feeding pipeline targets hourly data; gaps are surfaced as a
// warning, not an error.
func GapCount(records []pricing.ConsumptionRecord) int {
	timestamps := pricing.UniqueTimestamps(records)
	gaps := 0
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Sub(timestamps[i-1]) != time.Hour {
			gaps++
		}
	}
	return gaps
}

func roundKWh(v float64) float64 {
	return math.Round(v*1000) / 1000
}
