package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 30, cfg.Session.TimeoutMinutes)
	assert.InDelta(t, 0.6, cfg.Engine.ReadinessThreshold, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.FastModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.DeepModel)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "Chat Widget - Intelligence AI", cfg.Salesforce.Source)
	assert.Equal(t, 70, cfg.Alert.ScoreThreshold)
	assert.Equal(t, 5, cfg.OTP.TTLMinutes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
  database_url: intel.db
session:
  timeout_minutes: 10
engine:
  readiness_threshold: 0.8
alert:
  score_threshold: 85
server:
  port: 9090
  widget_token: sekret
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "intel.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Session.TimeoutMinutes)
	assert.InDelta(t, 0.8, cfg.Engine.ReadinessThreshold, 0.001)
	assert.Equal(t, 85, cfg.Alert.ScoreThreshold)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekret", cfg.Server.WidgetToken)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("INTEL_STORE_DRIVER", "sqlite")
	t.Setenv("INTEL_ANTHROPIC_KEY", "sk-test")
	t.Setenv("INTEL_SESSION_TIMEOUT_MINUTES", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 45, cfg.Session.TimeoutMinutes)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
