package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-mm",
	Short: "Polymarket market-maker bot",
	Long: `Automated market maker for Polymarket binary markets.

For each market selected in the configuration spreadsheet the bot maintains
resting bid orders, manages take-profit exits, enforces stop-loss,
volatility and liquidity guards, and merges offsetting YES/NO holdings back
into collateral.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
