package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "GBP", cfg.DefaultCurrency)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 90, cfg.Sync.WindowDays)
	assert.Equal(t, 365, cfg.Sync.FullSyncDays)
	assert.Equal(t, "https://auth.truelayer.com", cfg.TrueLayer.AuthBaseURL)
	assert.Empty(t, cfg.Categories)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.toml")
	content := `
default_currency = "EUR"

[server]
port = "9090"

[sync]
window_days = 30

[[categories]]
category = "Coffee"
keywords = ["espresso", "flat white"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Sync.WindowDays)
	assert.Equal(t, 7, cfg.Sync.OverlapDays, "unset keys keep defaults")
	require.Len(t, cfg.Categories, 1)
	assert.Equal(t, "Coffee", cfg.Categories[0].Category)
	assert.Equal(t, []string{"espresso", "flat white"}, cfg.Categories[0].Keywords)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
