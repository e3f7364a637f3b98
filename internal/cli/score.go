package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tariff-optimizer/internal/app"
)

var (
	scoreRunID    string
	scoreOutliers int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-score a stored run against its consumption window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreRunID == "" {
			return fmt.Errorf("--run must be provided")
		}

		opts := app.ScoreOptions{
			RunID:    scoreRunID,
			Outliers: scoreOutliers,
		}

		return getApp().Score(cmd.Context(), opts)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreRunID, "run", "", "Run id to score")
	scoreCmd.Flags().IntVar(&scoreOutliers, "outliers", 5, "Number of highest and lowest unit cost households to list")
}
