package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"tariff-optimizer/internal/ingest"
	"tariff-optimizer/internal/pricing"
	"tariff-optimizer/internal/storage"
)

// Ingest fetches country-level load from ENTSO-E, disaggregates it into
// synthetic household consumption, and bulk-inserts the records.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	country := opts.Country
	if country == "" {
		country = a.Config.Entsoe.Country
	}

	days := opts.Days
	if days <= 0 {
		days = a.Config.Ingest.DaysBack
	}
	if days > a.Config.Ingest.MaxDaysBack {
		return fmt.Errorf("days %d exceeds maximum of %d", days, a.Config.Ingest.MaxDaysBack)
	}

	households := opts.Households
	if households <= 0 {
		households = a.Config.Ingest.Households
	}
	if households > a.Config.Ingest.MaxHouseholds {
		return fmt.Errorf("households %d exceeds maximum of %d", households, a.Config.Ingest.MaxHouseholds)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot ingest")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC().Truncate(time.Hour)
	from := to.AddDate(0, 0, -days)

	a.Logger.Info().
		Str("country", country).
		Time("from", from).
		Time("to", to).
		Int("households", households).
		Msg("fetching actual load")

	points, err := a.newFetcher().FetchActualLoad(ctx, country, from, to)
	if err != nil {
		return fmt.Errorf("fetch actual load: %w", err)
	}
	if len(points) == 0 {
		return errors.New("entsoe returned no load points for the window")
	}

	records, err := ingest.Disaggregate(points, ingest.Options{
		Households:        households,
		HouseholdFraction: a.Config.Ingest.HouseholdFraction,
	})
	if err != nil {
		return err
	}

	if gaps := ingest.GapCount(records); gaps > 0 {
		a.Logger.Warn().Int("gaps", gaps).Msg("load series has non-hourly gaps")
	}

	if opts.Replace {
		if err := store.DeleteConsumptionBetween(ctx, from, to.Add(time.Second), country); err != nil {
			return err
		}
		a.Logger.Info().Msg("replaced existing consumption in window")
	}

	rows := recordsToRows(records, country)

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("inserting consumption"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var inserted int64
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		count, err := store.InsertConsumption(ctx, rows[start:end])
		if err != nil {
			return err
		}
		inserted += count
		_ = bar.Add(end - start)
	}
	_ = bar.Finish()

	a.Logger.Info().
		Int64("rows", inserted).
		Int("load_points", len(points)).
		Msg("ingest completed")
	fmt.Fprintf(os.Stdout, "ingested %d consumption rows (%d load points, %d households)\n",
		inserted, len(points), households)
	return nil
}

const insertBatchSize = 5000

func recordsToRows(records []pricing.ConsumptionRecord, country string) []storage.ConsumptionRow {
	rows := make([]storage.ConsumptionRow, len(records))
	for i, record := range records {
		rows[i] = storage.ConsumptionRow{
			HouseholdID:    record.HouseholdID,
			Timestamp:      record.Timestamp,
			ConsumptionKWh: record.ConsumptionKWh,
			Country:        country,
		}
	}
	return rows
}
