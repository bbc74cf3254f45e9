package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmaker/polymarket-mm/internal/app"
	"github.com/mmaker/polymarket-mm/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the market-maker bot",
	Long: `Starts the market maker, which will:
1. Load selected markets and parameter profiles from the spreadsheet
2. Reconcile positions and open orders against the exchange
3. Subscribe to the market and user streams
4. Quote entries and exits per market, guarded by the risk checks`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}
	return nil
}
