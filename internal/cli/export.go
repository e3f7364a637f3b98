package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tariff-optimizer/internal/app"
)

var (
	exportRunID     string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's price curve as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportRunID == "" {
			return fmt.Errorf("--run must be provided")
		}

		opts := app.ExportOptions{
			RunID:     exportRunID,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run id to export")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum curve points to export (defaults to config)")
}
