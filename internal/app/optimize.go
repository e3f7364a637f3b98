package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"tariff-optimizer/internal/config"
	"tariff-optimizer/internal/service"
	"tariff-optimizer/internal/storage"
)

// Optimize runs the revenue-constrained optimizer over a stored consumption
// window and persists the resulting run.
func (a *App) Optimize(ctx context.Context, opts OptimizeOptions) error {
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

	cfg := *a.Config
	cfg.Optimizer = overriddenOptimizer(cfg.Optimizer, opts)

	from, to, err := a.resolveWindow(ctx, store, opts.From, opts.To)
	if err != nil {
		return err
	}

	svc := service.New(&cfg, nil, store, store, a.newNotifier(), a.Logger)
	result, err := svc.RepriceWindow(ctx, from, to, opts.Target)
	if err != nil {
		return err
	}

	printRunSummary(result)
	return nil
}

func overriddenOptimizer(base config.OptimizerConfig, opts OptimizeOptions) config.OptimizerConfig {
	if opts.FairnessWeight >= 0 {
		base.FairnessWeight = opts.FairnessWeight
	}
	if opts.ProfitWeight >= 0 {
		base.ProfitWeight = opts.ProfitWeight
	}
	if opts.MinPrice > 0 {
		base.MinPrice = opts.MinPrice
	}
	if opts.MaxPrice > 0 {
		base.MaxPrice = opts.MaxPrice
	}
	if opts.Timeout > 0 {
		base.SolverTimeout = opts.Timeout
	}
	if opts.Mode != "" {
		base.Mode = opts.Mode
	}
	if opts.MinRecoveryPct > 0 {
		base.MinCostRecoveryPct = opts.MinRecoveryPct
	}
	if opts.MaxRecoveryPct > 0 {
		base.MaxCostRecoveryPct = opts.MaxRecoveryPct
	}
	return base
}

// resolveWindow falls back to the full stored consumption range when the
// caller did not pin the window.
func (a *App) resolveWindow(ctx context.Context, store *storage.Store, from, to *time.Time) (time.Time, time.Time, error) {
	if from != nil && to != nil {
		if !from.Before(*to) {
			return time.Time{}, time.Time{}, errors.New("from must be before to")
		}
		return from.UTC(), to.UTC(), nil
	}

	minTS, maxTS, count, err := store.ConsumptionWindow(ctx, a.Config.Entsoe.Country)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if count == 0 {
		return time.Time{}, time.Time{}, errors.New("no consumption data stored; run ingest first")
	}

	resolvedFrom := minTS.UTC()
	resolvedTo := maxTS.UTC().Add(time.Second) // window upper bound is exclusive
	if from != nil {
		resolvedFrom = from.UTC()
	}
	if to != nil {
		resolvedTo = to.UTC()
	}
	if !resolvedFrom.Before(resolvedTo) {
		return time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return resolvedFrom, resolvedTo, nil
}

func printRunSummary(result service.Result) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(writer, "Run ID\t%s\n", result.Run.ID)
	fmt.Fprintf(writer, "Mode\t%s\n", result.Run.Mode)
	fmt.Fprintf(writer, "Solver status\t%s\n", result.Outcome.Status)
	fmt.Fprintf(writer, "Solver runtime\t%s\n", result.Outcome.Runtime.Round(time.Millisecond))
	fmt.Fprintf(writer, "Objective value\t%.4f\n", result.Outcome.ObjectiveValue)
	fmt.Fprintf(writer, "Weights (fairness/profit)\t%.2f / %.2f\n", result.Outcome.FairnessWeight, result.Outcome.ProfitWeight)
	fmt.Fprintf(writer, "Total revenue\t%s\n", result.Run.TotalRevenue.StringFixed(2))
	fmt.Fprintf(writer, "Cost recovery\t%s%%\n", result.Run.CostRecoveryPct.StringFixed(2))
	fmt.Fprintf(writer, "Shortfall / excess\t%.2f / %.2f\n", result.Outcome.Shortfall, result.Outcome.Excess)
	fmt.Fprintf(writer, "Price mean/std\t%.4f / %.4f\n", result.Outcome.MeanPrice, result.Outcome.PriceStd)
	fmt.Fprintf(writer, "Price min/max\t%.4f / %.4f\n", result.Outcome.PriceMin, result.Outcome.PriceMax)
	fmt.Fprintf(writer, "Gini coefficient\t%.4f\n", result.Metrics.GiniCoefficient)
	fmt.Fprintf(writer, "Coefficient of variation\t%.4f\n", result.Metrics.CoefficientOfVariation)
	fmt.Fprintf(writer, "Households scored\t%d\n", len(result.Costs))

	writer.Flush()
}
