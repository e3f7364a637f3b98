package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"tariff-optimizer/internal/pricing"
	"tariff-optimizer/internal/service"
)

// Score re-joins a stored run's price curve with its consumption window and
// prints per-household costs and fairness metrics.
func (a *App) Score(ctx context.Context, opts ScoreOptions) error {
	runID, err := uuid.Parse(opts.RunID)
	if err != nil {
		return fmt.Errorf("invalid --run value: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot score runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	curve, err := service.UnmarshalCurve(run.Curve)
	if err != nil {
		return err
	}

	rows, err := store.ListConsumptionBetween(ctx, run.WindowFrom, run.WindowTo, run.Country)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("consumption window for this run is no longer stored")
	}

	records := service.RowsToRecords(rows)
	costs, metrics := pricing.Score(records, curve)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Run\t%s (%s)\n", run.ID, run.Source)
	fmt.Fprintf(writer, "Gini coefficient\t%.4f\n", metrics.GiniCoefficient)
	fmt.Fprintf(writer, "Coefficient of variation\t%.4f\n", metrics.CoefficientOfVariation)
	fmt.Fprintf(writer, "Unit cost min/median/max\t%.4f / %.4f / %.4f\n",
		metrics.MinCostPerKWh, metrics.MedianCostPerKWh, metrics.MaxCostPerKWh)
	fmt.Fprintf(writer, "Unit cost mean/std\t%.4f / %.4f\n", metrics.MeanCostPerKWh, metrics.StdCostPerKWh)
	fmt.Fprintf(writer, "Households\t%d\n", len(costs))
	writer.Flush()

	if opts.Outliers > 0 {
		highest, lowest := pricing.Outliers(costs, opts.Outliers)
		printOutliers("Highest unit cost", highest)
		printOutliers("Lowest unit cost", lowest)
	}

	return nil
}

func printOutliers(title string, costs []pricing.HouseholdCost) {
	if len(costs) == 0 {
		return
	}

	fmt.Fprintf(os.Stdout, "\n%s:\n", title)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Household\tTotal cost\tTotal kWh\tUnit cost")
	for _, cost := range costs {
		fmt.Fprintf(writer, "%d\t%.2f\t%.2f\t%.4f\n",
			cost.HouseholdID, cost.TotalCost, cost.TotalConsumption, cost.AvgCostPerKWh)
	}
	writer.Flush()
}
