package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmaker/polymarket-mm/internal/position"
	"github.com/mmaker/polymarket-mm/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var clearRiskEventCmd = &cobra.Command{
	Use:   "clear-risk-event <condition-id>",
	Short: "End a market's cool-down early",
	Long: `Removes the persisted risk-event file for a market, allowing the
bot to trade it again before the sleep window expires.`,
	Args: cobra.ExactArgs(1),
	RunE: runClearRiskEvent,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(clearRiskEventCmd)
}

func runClearRiskEvent(cmd *cobra.Command, args []string) error {
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

	manager, err := position.NewManager(&position.Config{
		PositionsDir: cfg.PositionsDir,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create position manager: %w", err)
	}

	return manager.ClearRiskEvent(args[0])
}
