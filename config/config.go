// Package config defines the showroom application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/showroom/message"
	"github.com/GoCodeAlone/showroom/plan"
)

// Config is the top-level showroom configuration.
type Config struct {
	DataDir   string                 `json:"data_dir" yaml:"data_dir"`
	DBPath    string                 `json:"db_path,omitempty" yaml:"db_path"` // default <data_dir>/showroom.db
	LogLevel  string                 `json:"log_level" yaml:"log_level"`
	LogFormat string                 `json:"log_format" yaml:"log_format"` // "json" or "console"
	Timezone  string                 `json:"timezone,omitempty" yaml:"timezone"`
	Schedule  ScheduleConfig         `json:"schedule" yaml:"schedule"`
	Engine    EngineConfig           `json:"engine" yaml:"engine"`
	Provider  ProviderConfig         `json:"provider" yaml:"provider"`
	Calendar  CalendarConfig         `json:"calendar" yaml:"calendar"`
	Server    ServerConfig           `json:"server" yaml:"server"`
	Plans     map[string][]plan.Step `json:"plans,omitempty" yaml:"plans"` // per-segment overrides
}

// ScheduleConfig controls the daily trigger.
type ScheduleConfig struct {
	Cron       string        `json:"cron" yaml:"cron"`
	RunOnStart bool          `json:"run_on_start" yaml:"run_on_start"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// EngineConfig tunes the follow-up batch.
type EngineConfig struct {
	Workers        int           `json:"workers" yaml:"workers"`
	Style          string        `json:"style" yaml:"style"`
	RequireMessage bool          `json:"require_message" yaml:"require_message"`
	CallTimeout    time.Duration `json:"call_timeout" yaml:"call_timeout"`
	Salesperson    string        `json:"salesperson,omitempty" yaml:"salesperson"`
}

// ProviderConfig selects the message provider. Name "template" fills the
// built-in templates without calling a model.
type ProviderConfig struct {
	Name        string        `json:"name" yaml:"name"` // "template", "anthropic", "openai", "gemini"
	Model       string        `json:"model,omitempty" yaml:"model"`
	APIKey      string        `json:"-" yaml:"api_key"`
	BaseURL     string        `json:"base_url,omitempty" yaml:"base_url"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// CalendarConfig controls mirroring of created tasks to Google Calendar.
type CalendarConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	CalendarID      string `json:"calendar_id" yaml:"calendar_id"`
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file"`
	TokenFile       string `json:"token_file,omitempty" yaml:"token_file"`
}

// ServerConfig controls the HTTP API started by `showroom serve`.
type ServerConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	Addr              string        `json:"addr" yaml:"addr"` // listen address, e.g., "127.0.0.1:8088"
	JWTSecret         string        `json:"-" yaml:"jwt_secret"`
	AdminUser         string        `json:"admin_user,omitempty" yaml:"admin_user"`
	AdminPasswordHash string        `json:"-" yaml:"admin_password_hash"` // bcrypt, see `showroom passwd`
	TokenTTL          time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:   "./data",
		LogLevel:  "info",
		LogFormat: "json",
		Schedule: ScheduleConfig{
			Cron:    "0 7 * * *",
			Timeout: 30 * time.Minute,
		},
		Engine: EngineConfig{
			Workers:        4,
			Style:          string(message.DefaultStyle),
			RequireMessage: true,
			CallTimeout:    30 * time.Second,
		},
		Provider: ProviderConfig{
			Name:        "template",
			MaxTokens:   400,
			Temperature: 0.8,
			MaxRetries:  2,
			Timeout:     60 * time.Second,
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:8088",
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// apiKeyEnv names the environment variable holding each provider's key.
var apiKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// ApplyEnv overrides settings from the environment. A key in the config file
// wins over the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SHOWROOM_DB"); v != "" {
		c.DBPath = v
	}
	if v := getenv("SHOWROOM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("SHOWROOM_JWT_SECRET"); v != "" && c.Server.JWTSecret == "" {
		c.Server.JWTSecret = v
	}
	if c.Provider.APIKey == "" {
		if name, ok := apiKeyEnv[strings.ToLower(c.Provider.Name)]; ok {
			c.Provider.APIKey = getenv(name)
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format: must be json or console, got %q", c.LogFormat))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, fmt.Errorf("engine.workers: must be at least 1, got %d", c.Engine.Workers))
	}
	if _, err := message.ParseStyle(c.Engine.Style); err != nil {
		errs = append(errs, fmt.Errorf("engine.style: %w", err))
	}
	switch name := strings.ToLower(c.Provider.Name); name {
	case "template":
	case "anthropic", "openai", "gemini":
		if c.Provider.APIKey == "" && c.Provider.BaseURL == "" {
			errs = append(errs, fmt.Errorf("provider.api_key: required for %s (or set %s)", name, apiKeyEnv[name]))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.name: unknown provider %q", c.Provider.Name))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("provider.temperature: must be within [0, 2], got %g", c.Provider.Temperature))
	}
	if c.Calendar.Enabled && (c.Calendar.CredentialsFile == "" || c.Calendar.TokenFile == "") {
		errs = append(errs, errors.New("calendar: credentials_file and token_file are required when enabled"))
	}
	if c.Server.Enabled {
		if c.Server.Addr == "" {
			errs = append(errs, errors.New("server.addr: required when enabled"))
		}
		if c.Server.JWTSecret == "" && (c.Server.AdminUser == "" || c.Server.AdminPasswordHash == "") {
			errs = append(errs, errors.New("server: set jwt_secret or admin_user and admin_password_hash"))
		}
		if c.Server.TokenTTL <= 0 {
			errs = append(errs, fmt.Errorf("server.token_ttl: must be positive, got %s", c.Server.TokenTTL))
		}
	}
	if _, err := c.FollowUpPlans(); err != nil {
		errs = append(errs, fmt.Errorf("plans: %w", err))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the SQLite file path.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "showroom.db")
}

// Location returns the time zone that decides "today". Empty means local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// FollowUpPlans returns the built-in plan table with the configured segments
// replacing their defaults.
func (c *Config) FollowUpPlans() (plan.Plans, error) {
	override, err := plan.FromConfig(c.Plans)
	if err != nil {
		return nil, err
	}
	return plan.Default().Merge(override), nil
}
