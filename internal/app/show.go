package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent optimization runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tRun ID\tSource\tMode\tStatus\tRevenue\tRecovery%\tGini\tCV")

	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.4f\t%.4f\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.ID,
			run.Source,
			run.Mode,
			run.SolverStatus,
			run.TotalRevenue.StringFixed(2),
			run.CostRecoveryPct.StringFixed(2),
			run.GiniCoefficient,
			run.CoefficientOfVariation,
		)
	}

	writer.Flush()
	return nil
}
