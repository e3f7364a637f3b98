package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	chart "github.com/wcharczuk/go-chart/v2"

	"tariff-optimizer/internal/pricing"
	"tariff-optimizer/internal/service"
)

// Export renders a stored run's price curve as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	runID, err := uuid.Parse(opts.RunID)
	if err != nil {
		return fmt.Errorf("invalid --run value: %w", err)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
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
	if len(curve) == 0 {
		a.Logger.Info().Str("run_id", run.ID.String()).Msg("run has an empty price curve")
		return nil
	}

	downsampled := downsampleCurve(curve, opts.MaxPoints)
	a.Logger.Info().Int("total", len(curve)).Int("exported", len(downsampled)).Msg("exporting price curve")

	if opts.CSVPath != "" {
		if err := writeCurveCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s tariff (%s)", run.Source, run.Country)
		if err := writeCurvePNG(opts.PNGPath, title, run.AvgPricePerKWh, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleCurve(curve pricing.PriceCurve, max int) pricing.PriceCurve {
	if max <= 0 || len(curve) <= max {
		return curve
	}

	result := make(pricing.PriceCurve, 0, max)
	step := float64(len(curve)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(curve) {
			idx = len(curve) - 1
		}
		result = append(result, curve[idx])
	}
	return result
}

func writeCurveCSV(path string, curve pricing.PriceCurve) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "price_per_kwh"}); err != nil {
		return err
	}

	for _, point := range curve {
		record := []string{
			point.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(point.PricePerKWh, 'f', 6, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeCurvePNG(path, title string, avgPrice float64, curve pricing.PriceCurve) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(curve))
	prices := make([]float64, len(curve))
	mean := make([]float64, len(curve))
	for i, point := range curve {
		x[i] = point.Timestamp
		prices[i] = point.PricePerKWh
		mean[i] = avgPrice
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (/kWh)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Average",
				XValues: x,
				YValues: mean,
				Style: chart.Style{
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
