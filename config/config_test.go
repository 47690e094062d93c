package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/showroom/plan"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "showroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) string { return "" }

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("data", "showroom.db"), cfg.DatabasePath())

	plans, err := cfg.FollowUpPlans()
	require.NoError(t, err)
	assert.Equal(t, plan.Default(), plans)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/showroom
log_level: debug
log_format: console
timezone: America/Chicago
schedule:
  cron: "30 8 * * 1-6"
  run_on_start: true
engine:
  workers: 8
  style: email
  require_message: false
  call_timeout: 10s
  salesperson: Sam
provider:
  name: openai
  model: gpt-4o-mini
  api_key: sk-file
plans:
  shopper:
    - days_after: 1
      description: Send a thank-you card
    - days_after: 14
      description: Invite to the spring sale
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "30 8 * * 1-6", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Timeout, "unset keys keep their defaults")
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.False(t, cfg.Engine.RequireMessage)
	assert.Equal(t, 10*time.Second, cfg.Engine.CallTimeout)
	assert.Equal(t, "sk-file", cfg.Provider.APIKey)
	assert.Equal(t, 400, cfg.Provider.MaxTokens)
	assert.Equal(t, filepath.Join("/var/lib/showroom", "showroom.db"), cfg.DatabasePath())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())

	plans, err := cfg.FollowUpPlans()
	require.NoError(t, err)
	assert.Equal(t, []plan.Step{
		{DayOffset: 1, Description: "Send a thank-you card"},
		{DayOffset: 14, Description: "Invite to the spring sale"},
	}, plans.Steps(plan.Shopper))
	assert.Equal(t, plan.Default().Steps(plan.Buyer), plans.Steps(plan.Buyer))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "engine: [not, a, map]"))
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SHOWROOM_DB":         "/tmp/crm.db",
		"SHOWROOM_LOG_LEVEL":  "warn",
		"ANTHROPIC_API_KEY":   "sk-ant",
		"OPENAI_API_KEY":      "sk-openai",
		"SHOWROOM_JWT_SECRET": "s3cret",
	}
	cfg := DefaultConfig()
	cfg.Provider.Name = "anthropic"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "/tmp/crm.db", cfg.DatabasePath())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "sk-ant", cfg.Provider.APIKey)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)

	cfg = DefaultConfig()
	cfg.Provider.Name = "openai"
	cfg.Provider.APIKey = "sk-file"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "sk-file", cfg.Provider.APIKey, "file key wins")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"cron", func(c *Config) { c.Schedule.Cron = "daily" }, "schedule.cron"},
		{"workers", func(c *Config) { c.Engine.Workers = 0 }, "engine.workers"},
		{"style", func(c *Config) { c.Engine.Style = "fax" }, "engine.style"},
		{"provider", func(c *Config) { c.Provider.Name = "copilot" }, "provider.name"},
		{"api key", func(c *Config) { c.Provider.Name = "gemini" }, "GEMINI_API_KEY"},
		{"temperature", func(c *Config) { c.Provider.Temperature = 3 }, "provider.temperature"},
		{"calendar", func(c *Config) { c.Calendar.Enabled = true }, "calendar"},
		{"server auth", func(c *Config) { c.Server.Enabled = true }, "jwt_secret"},
		{"server ttl", func(c *Config) {
			c.Server.Enabled = true
			c.Server.JWTSecret = "s3cret"
			c.Server.TokenTTL = 0
		}, "server.token_ttl"},
		{"plan segment", func(c *Config) {
			c.Plans = map[string][]plan.Step{"vip": {{DayOffset: 1, Description: "Call"}}}
		}, "plans"},
		{"plan offset", func(c *Config) {
			c.Plans = map[string][]plan.Step{"buyer": {{DayOffset: -1, Description: "Call"}}}
		}, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ApplyEnv(noEnv)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	cfg.Engine.Workers = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "engine.workers")
}
