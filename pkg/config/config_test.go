package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()

	creds := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0o600))

	return &Config{
		PrivateKey:      "0xabc",
		WalletAddress:   "0xdef",
		SpreadsheetURL:  "https://docs.google.com/spreadsheets/d/abc/edit",
		CredentialsFile: creds,
		MinMergeSize:    1.0,
		UpdateInterval:  5 * time.Second,
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	cfg := validConfig(t)
	cfg.PrivateKey = ""
	cfg.WalletAddress = ""
	cfg.SpreadsheetURL = ""
	cfg.MinMergeSize = -1
	cfg.UpdateInterval = 0

	err := cfg.Validate()
	require.Error(t, err)

	// Every problem is reported at once.
	msg := err.Error()
	assert.Contains(t, msg, "PK")
	assert.Contains(t, msg, "BROWSER_ADDRESS")
	assert.Contains(t, msg, "SPREADSHEET_URL")
	assert.Contains(t, msg, "MIN_MERGE_SIZE")
	assert.Contains(t, msg, "UPDATE_INTERVAL")
}

func TestValidateRequiresCredentialsFile(t *testing.T) {
	cfg := validConfig(t)
	cfg.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials file")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0o600))

	t.Setenv("PK", "0xabc")
	t.Setenv("BROWSER_ADDRESS", "0xdef")
	t.Setenv("SPREADSHEET_URL", "https://docs.google.com/spreadsheets/d/abc/edit")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", creds)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, "https://clob.polymarket.com", cfg.APIBaseURL)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.UpdateInterval)
	assert.Equal(t, 6, cfg.MarketRefreshEvery)
	assert.Equal(t, time.Second, cfg.ReconnectInitialDelay)
	assert.Equal(t, 60*time.Second, cfg.ReconnectMaxDelay)
	assert.Equal(t, 1.0, cfg.MinMergeSize)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0o600))

	t.Setenv("PK", "0xabc")
	t.Setenv("BROWSER_ADDRESS", "0xdef")
	t.Setenv("SPREADSHEET_URL", "https://docs.google.com/spreadsheets/d/abc/edit")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", creds)
	t.Setenv("UPDATE_INTERVAL", "2s")
	t.Setenv("CHAIN_ID", "80002")
	t.Setenv("MAX_TOTAL_EXPOSURE", "1234.5")
	t.Setenv("MIN_MERGE_SIZE", "2.5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.UpdateInterval)
	assert.Equal(t, int64(80002), cfg.ChainID)
	assert.Equal(t, 1234.5, cfg.MaxTotalExposure)
	assert.Equal(t, 2.5, cfg.MinMergeSize)
}
