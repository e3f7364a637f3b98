package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tariff-optimizer/internal/app"
)

var (
	optimizeFrom           string
	optimizeTo             string
	optimizeTarget         float64
	optimizeFairnessWeight float64
	optimizeProfitWeight   float64
	optimizeMinPrice       float64
	optimizeMaxPrice       float64
	optimizeTimeout        time.Duration
	optimizeMode           string
	optimizeMinRecovery    float64
	optimizeMaxRecovery    float64
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a tariff over a stored consumption window",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.OptimizeOptions{
			Target:         optimizeTarget,
			FairnessWeight: optimizeFairnessWeight,
			ProfitWeight:   optimizeProfitWeight,
			MinPrice:       optimizeMinPrice,
			MaxPrice:       optimizeMaxPrice,
			Timeout:        optimizeTimeout,
			Mode:           optimizeMode,
			MinRecoveryPct: optimizeMinRecovery,
			MaxRecoveryPct: optimizeMaxRecovery,
		}

		if optimizeFrom != "" {
			from, err := time.Parse(time.RFC3339, optimizeFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if optimizeTo != "" {
			to, err := time.Parse(time.RFC3339, optimizeTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		return getApp().Optimize(cmd.Context(), opts)
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	optimizeCmd.Flags().StringVar(&optimizeTo, "to", "", "End timestamp (RFC3339, exclusive)")
	optimizeCmd.Flags().Float64Var(&optimizeTarget, "target", 0, "Cost recovery target in currency units (defaults to configured target price times consumption)")
	optimizeCmd.Flags().Float64Var(&optimizeFairnessWeight, "fairness-weight", -1, "Fairness objective weight in [0,1]")
	optimizeCmd.Flags().Float64Var(&optimizeProfitWeight, "profit-weight", -1, "Profit objective weight in [0,1]")
	optimizeCmd.Flags().Float64Var(&optimizeMinPrice, "min-price", 0, "Lower price bound per kWh")
	optimizeCmd.Flags().Float64Var(&optimizeMaxPrice, "max-price", 0, "Upper price bound per kWh")
	optimizeCmd.Flags().DurationVar(&optimizeTimeout, "timeout", 0, "Solver timeout (defaults to config)")
	optimizeCmd.Flags().StringVar(&optimizeMode, "mode", "", "Optimization mode: regulated or market")
	optimizeCmd.Flags().Float64Var(&optimizeMinRecovery, "min-recovery-pct", 0, "Market mode revenue floor as percent of target")
	optimizeCmd.Flags().Float64Var(&optimizeMaxRecovery, "max-recovery-pct", 0, "Market mode revenue cap as percent of target")
}
