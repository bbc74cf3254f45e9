package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmaker/polymarket-mm/internal/sheets"
	"github.com/mmaker/polymarket-mm/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var initSheetCmd = &cobra.Command{
	Use:   "init-sheet",
	Short: "Bootstrap the configuration spreadsheet",
	Long: `Creates the Selected Markets, Hyperparameters and All Markets
worksheets with their headers and a default parameter profile. Existing
tabs are left untouched.`,
	RunE: runInitSheet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(initSheetCmd)
}

func runInitSheet(cmd *cobra.Command, args []string) error {
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

	client, err := sheets.NewClient(&sheets.ClientConfig{
		SpreadsheetURL:  cfg.SpreadsheetURL,
		CredentialsFile: cfg.CredentialsFile,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create sheets client: %w", err)
	}

	source := sheets.NewSource(client, logger)
	return source.CreateTemplate(context.Background())
}
