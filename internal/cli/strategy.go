package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tariff-optimizer/internal/app"
)

var (
	strategyName        string
	strategyFrom        string
	strategyTo          string
	strategyTarget      float64
	strategySave        bool
	strategyPeakHours   []int
	strategyPeakMult    float64
	strategyOffPeakMult float64
	strategyMinMult     float64
	strategyMaxMult     float64
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Price a consumption window with a closed-form strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.StrategyOptions{
			Strategy:          strategyName,
			Target:            strategyTarget,
			Save:              strategySave,
			PeakHours:         strategyPeakHours,
			PeakMultiplier:    strategyPeakMult,
			OffPeakMultiplier: strategyOffPeakMult,
			MinMultiplier:     strategyMinMult,
			MaxMultiplier:     strategyMaxMult,
		}

		if strategyFrom != "" {
			from, err := time.Parse(time.RFC3339, strategyFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if strategyTo != "" {
			to, err := time.Parse(time.RFC3339, strategyTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().RunStrategy(cmd.Context(), opts)
	},
}

func init() {
	strategyCmd.Flags().StringVar(&strategyName, "name", "flat", "Pricing strategy: flat, tou, or dynamic")
	strategyCmd.Flags().StringVar(&strategyFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	strategyCmd.Flags().StringVar(&strategyTo, "to", "", "End timestamp (RFC3339, exclusive)")
	strategyCmd.Flags().Float64Var(&strategyTarget, "target", 0, "Cost recovery target in currency units (defaults to configured target price times consumption)")
	strategyCmd.Flags().BoolVar(&strategySave, "save", false, "Persist the resulting run")
	strategyCmd.Flags().IntSliceVar(&strategyPeakHours, "peak-hours", nil, "Peak hours (UTC) for the tou strategy")
	strategyCmd.Flags().Float64Var(&strategyPeakMult, "peak-multiplier", 0, "Peak price multiplier for the tou strategy")
	strategyCmd.Flags().Float64Var(&strategyOffPeakMult, "offpeak-multiplier", 0, "Off-peak price multiplier for the tou strategy")
	strategyCmd.Flags().Float64Var(&strategyMinMult, "min-multiplier", 0, "Lower multiplier bound for the dynamic strategy")
	strategyCmd.Flags().Float64Var(&strategyMaxMult, "max-multiplier", 0, "Upper multiplier bound for the dynamic strategy")
}
