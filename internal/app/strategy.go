package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"tariff-optimizer/internal/optimizer"
	"tariff-optimizer/internal/pricing"
	"tariff-optimizer/internal/service"
)

// RunStrategy prices a stored consumption window with one of the closed-form
// strategies and reports cost recovery and fairness.
func (a *App) RunStrategy(ctx context.Context, opts StrategyOptions) error {
	kind, err := pricing.ParseStrategyKind(opts.Strategy)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot load consumption")
	}
	if closeStore != nil {
		defer closeStore()
	}

	from, to, err := a.resolveWindow(ctx, store, opts.From, opts.To)
	if err != nil {
		return err
	}

	rows, err := store.ListConsumptionBetween(ctx, from, to, a.Config.Entsoe.Country)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("no consumption data in window; run ingest first")
	}
	records := service.RowsToRecords(rows)

	target := opts.Target
	if target <= 0 {
		target = a.Config.Optimizer.TargetPricePerKWh * pricing.TotalConsumption(records)
	}

	params := a.strategyParams(opts)

	start := time.Now()
	curve, err := pricing.CalculatePrices(kind, records, target, params)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	recovery := pricing.ValidateCostRecovery(records, curve, target)
	costs, metrics := pricing.Score(records, curve)

	printStrategySummary(kind, recovery, metrics, len(costs))

	if opts.Save {
		outcome := strategyOutcome(curve, recovery, elapsed)
		run, err := service.BuildRun(string(kind), a.Config.Entsoe.Country, from, to, target, optimizer.Options{
			CostRecoveryTarget: target,
			MinPrice:           recovery.AvgPricePerKWh, // informational for closed-form runs
			MaxPrice:           recovery.AvgPricePerKWh,
			Mode:               optimizer.ModeRegulated,
		}, outcome, metrics)
		if err != nil {
			return err
		}
		if err := store.InsertRun(ctx, run); err != nil {
			return err
		}
		a.Logger.Info().Str("run_id", run.ID.String()).Msg("strategy run persisted")
		fmt.Fprintf(os.Stdout, "saved run %s\n", run.ID)
	}

	return nil
}

func (a *App) strategyParams(opts StrategyOptions) pricing.StrategyParams {
	params := pricing.StrategyParams{
		PeakHours:         a.Config.Pricing.PeakHours,
		PeakMultiplier:    a.Config.Pricing.PeakMultiplier,
		OffPeakMultiplier: a.Config.Pricing.OffPeakMultiplier,
		MinMultiplier:     a.Config.Pricing.MinMultiplier,
		MaxMultiplier:     a.Config.Pricing.MaxMultiplier,
	}
	if len(opts.PeakHours) > 0 {
		params.PeakHours = opts.PeakHours
	}
	if opts.PeakMultiplier > 0 {
		params.PeakMultiplier = opts.PeakMultiplier
	}
	if opts.OffPeakMultiplier > 0 {
		params.OffPeakMultiplier = opts.OffPeakMultiplier
	}
	if opts.MinMultiplier > 0 {
		params.MinMultiplier = opts.MinMultiplier
	}
	if opts.MaxMultiplier > 0 {
		params.MaxMultiplier = opts.MaxMultiplier
	}
	return params
}

// strategyOutcome wraps a closed-form curve in the outcome shape so it can be
// persisted alongside optimizer runs.
func strategyOutcome(curve pricing.PriceCurve, recovery pricing.RecoverySummary, elapsed time.Duration) optimizer.Outcome {
	prices := curve.Prices()

	var mean float64
	for _, p := range prices {
		mean += p
	}
	if len(prices) > 0 {
		mean /= float64(len(prices))
	}

	var sq float64
	minP, maxP := 0.0, 0.0
	for i, p := range prices {
		d := p - mean
		sq += d * d
		if i == 0 || p < minP {
			minP = p
		}
		if i == 0 || p > maxP {
			maxP = p
		}
	}
	std := 0.0
	if len(prices) > 0 {
		std = math.Sqrt(sq / float64(len(prices)))
	}

	outcome := optimizer.Outcome{
		Curve:        curve,
		Status:       "ClosedForm",
		Runtime:      elapsed,
		TotalRevenue: recovery.TotalRevenue,
		MeanPrice:    mean,
		PriceStd:     std,
		PriceMin:     minP,
		PriceMax:     maxP,
	}
	if recovery.TotalRevenue < recovery.Target {
		outcome.Shortfall = recovery.Target - recovery.TotalRevenue
	} else {
		outcome.Excess = recovery.TotalRevenue - recovery.Target
	}
	return outcome
}

func printStrategySummary(kind pricing.StrategyKind, recovery pricing.RecoverySummary, metrics pricing.FairnessMetrics, households int) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(writer, "Strategy\t%s\n", kind)
	fmt.Fprintf(writer, "Total revenue\t%.2f\n", recovery.TotalRevenue)
	fmt.Fprintf(writer, "Target\t%.2f\n", recovery.Target)
	fmt.Fprintf(writer, "Cost recovery\t%.2f%%\n", recovery.Percentage)
	fmt.Fprintf(writer, "Total consumption\t%.2f kWh\n", recovery.TotalConsumption)
	fmt.Fprintf(writer, "Average price\t%.4f /kWh\n", recovery.AvgPricePerKWh)
	fmt.Fprintf(writer, "Gini coefficient\t%.4f\n", metrics.GiniCoefficient)
	fmt.Fprintf(writer, "Coefficient of variation\t%.4f\n", metrics.CoefficientOfVariation)
	fmt.Fprintf(writer, "Households scored\t%d\n", households)

	writer.Flush()
}
