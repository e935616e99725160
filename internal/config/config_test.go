package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: oisurge-test\n"))
	require.NoError(t, err)

	assert.Equal(t, "oisurge-test", cfg.App.Name)
	assert.Equal(t, 16*time.Minute, cfg.Monitor.Retention)
	assert.Equal(t, []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}, cfg.Monitor.Horizons)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Cooldown)
	assert.Equal(t, 60*time.Second, cfg.Monitor.InitBackoff)
	assert.Equal(t, 3, cfg.Guard.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Guard.BaseDelay)
	assert.Equal(t, 5*time.Minute, cfg.Guard.DefaultBan)
	assert.Equal(t, "USDT", cfg.Binance.SettlementAsset)
	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.BaseURL)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Zero(t, cfg.App.StartupDelay)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  startup_delay: 15s
monitor:
  cooldown: 10m
  horizons: [2m, 10m]
alerting:
  telegram:
    enabled: true
    bot_token: abc
    chat_id: "42"
`)
	t.Setenv("OISURGE_GUARD_MAX_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.Cooldown)
	assert.Equal(t, 15*time.Second, cfg.App.StartupDelay)
	assert.Equal(t, []time.Duration{2 * time.Minute, 10 * time.Minute}, cfg.Monitor.Horizons)
	assert.Equal(t, 5, cfg.Guard.MaxAttempts)
	assert.Equal(t, "42", cfg.Alerting.Telegram.ChatID)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"telegram without token":   "alerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
		"horizon beyond retention": "monitor:\n  horizons: [20m]\n",
		"bad heartbeat cron":       "heartbeat:\n  enabled: true\n  cron: \"not a cron\"\n",
		"zero attempts":            "guard:\n  max_attempts: 0\n",
		"zero cooldown":            "monitor:\n  cooldown: 0s\n",
		"negative startup delay":   "app:\n  startup_delay: -5s\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
