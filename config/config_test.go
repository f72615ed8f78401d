package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromYaml_Overrides(t *testing.T) {
	path := writeConfig(t, `
finnhub:
  max_calls: 10
  window_duration: 2s
ledger:
  starting_cash: "25000"
  max_resets: 5
web_addr: ":9090"
`)

	cfg, err := FromYaml(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Finnhub.MaxCalls)
	assert.Equal(t, 2*time.Second, cfg.Finnhub.WindowDuration)
	assert.True(t, cfg.Ledger.StartingCash.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, 5, cfg.Ledger.MaxResets)
	assert.Equal(t, ":9090", cfg.WebAddr)

	// untouched fields keep defaults
	assert.Equal(t, defaultFinnhubBaseURL, cfg.Finnhub.BaseURL)
	assert.Equal(t, 5, cfg.AlphaVantage.MaxCalls)
}

func TestFromYaml_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := FromYaml(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Finnhub, cfg.Finnhub)
	assert.Equal(t, def.WebAddr, cfg.WebAddr)
	assert.True(t, cfg.Ledger.StartingCash.Equal(def.Ledger.StartingCash))
}

func TestFromYaml_BadStartingCash(t *testing.T) {
	path := writeConfig(t, "ledger:\n  starting_cash: \"lots\"\n")

	_, err := FromYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting_cash")
}

func TestFromYaml_NegativeStartingCash(t *testing.T) {
	path := writeConfig(t, "ledger:\n  starting_cash: \"-5\"\n")

	_, err := FromYaml(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestFromYaml_MissingFile(t *testing.T) {
	_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
