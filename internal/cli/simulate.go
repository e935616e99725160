package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oi-surge-alerts/internal/app"
)

var (
	simulateSymbol string
	simulatePrice  float64
	simulateOI     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push a synthetic one-minute move through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		outcome, err := getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Symbol:          simulateSymbol,
			PriceChangePct:  simulatePrice,
			OpenInterestPct: simulateOI,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", outcome)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "BTCUSDT", "Contract symbol")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Price change over one minute, in percent")
	simulateCmd.Flags().Float64Var(&simulateOI, "oi", 0, "Open-interest change over one minute, in percent")
}
