package ingest

import (
	"math"
	"testing"
	"time"

	"tariff-optimizer/internal/fetcher"
	"tariff-optimizer/internal/pricing"
)

func hourlyLoad(hours int, loadMW float64) []fetcher.LoadPoint {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := make([]fetcher.LoadPoint, hours)
	for i := range points {
		points[i] = fetcher.LoadPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			LoadMW:    loadMW,
		}
	}
	return points
}

func TestDisaggregateDeterministic(t *testing.T) {
	points := hourlyLoad(6, 50)
	opts := Options{Households: 10, HouseholdFraction: 0.3}

	first, err := Disaggregate(points, opts)
	if err != nil {
		t.Fatalf("disaggregate failed: %v", err)
	}
	second, err := Disaggregate(points, opts)
	if err != nil {
		t.Fatalf("disaggregate failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("record %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDisaggregateConservesTotals(t *testing.T) {
	points := hourlyLoad(4, 80)
	opts := Options{Households: 25, HouseholdFraction: 0.3}

	records, err := Disaggregate(points, opts)
	if err != nil {
		t.Fatalf("disaggregate failed: %v", err)
	}
	if len(records) != len(points)*opts.Households {
		t.Fatalf("expected %d records, got %d", len(points)*opts.Households, len(records))
	}

	perTimestamp := pricing.LoadByTimestamp(records)
	expected := 80.0 * 1000 * 0.3
	// Each household share is rounded to 3 decimals.
	tolerance := float64(opts.Households) * 0.0005
	for ts, total := range perTimestamp {
		if math.Abs(total-expected) > tolerance {
			t.Fatalf("timestamp %d total %f deviates from %f", ts, total, expected)
		}
	}
}

func TestDisaggregateVariesAcrossHouseholds(t *testing.T) {
	points := hourlyLoad(1, 100)
	records, err := Disaggregate(points, Options{Households: 20, HouseholdFraction: 0.3})
	if err != nil {
		t.Fatalf("disaggregate failed: %v", err)
	}

	first := records[0].ConsumptionKWh
	allEqual := true
	for _, rec := range records[1:] {
		if rec.ConsumptionKWh != first {
			allEqual = false
			break
		}
	}
	if allEqual {
		t.Fatal("household shares should not be uniform")
	}
}

func TestDisaggregateRejectsBadInput(t *testing.T) {
	points := hourlyLoad(1, 10)

	if _, err := Disaggregate(points, Options{Households: 0, HouseholdFraction: 0.3}); err == nil {
		t.Fatal("zero households should error")
	}
	if _, err := Disaggregate(points, Options{Households: 5, HouseholdFraction: 0}); err == nil {
		t.Fatal("zero fraction should error")
	}
	if _, err := Disaggregate(points, Options{Households: 5, HouseholdFraction: 1.5}); err == nil {
		t.Fatal("fraction above 1 should error")
	}
	if _, err := Disaggregate(nil, Options{Households: 5, HouseholdFraction: 0.3}); err == nil {
		t.Fatal("empty series should error")
	}

	negative := []fetcher.LoadPoint{{Timestamp: time.Now(), LoadMW: -1}}
	if _, err := Disaggregate(negative, Options{Households: 5, HouseholdFraction: 0.3}); err == nil {
		t.Fatal("negative load should error")
	}
}

func TestGapCount(t *testing.T) {
	points := hourlyLoad(5, 10)
	records, err := Disaggregate(points, Options{Households: 2, HouseholdFraction: 0.3})
	if err != nil {
		t.Fatalf("disaggregate failed: %v", err)
	}
	if gaps := GapCount(records); gaps != 0 {
		t.Fatalf("hourly series should report 0 gaps, got %d", gaps)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	gapped := []pricing.ConsumptionRecord{
		{HouseholdID: 1, Timestamp: start, ConsumptionKWh: 1},
		{HouseholdID: 1, Timestamp: start.Add(time.Hour), ConsumptionKWh: 1},
		{HouseholdID: 1, Timestamp: start.Add(3 * time.Hour), ConsumptionKWh: 1},
	}
	if gaps := GapCount(gapped); gaps != 1 {
		t.Fatalf("expected 1 gap, got %d", gaps)
	}
}
