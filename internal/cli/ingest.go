package cli

import (
	"github.com/spf13/cobra"

	"tariff-optimizer/internal/app"
)

var (
	ingestCountry    string
	ingestDays       int
	ingestHouseholds int
	ingestReplace    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch ENTSO-E load and store synthetic household consumption",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.IngestOptions{
			Country:    ingestCountry,
			Days:       ingestDays,
			Households: ingestHouseholds,
			Replace:    ingestReplace,
		}

		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCountry, "country", "", "Country code (defaults to config)")
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "Days of history to fetch (defaults to config)")
	ingestCmd.Flags().IntVar(&ingestHouseholds, "households", 0, "Number of synthetic households (defaults to config)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "Delete existing consumption in the window first")
}
