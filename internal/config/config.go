// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Alert      AlertConfig      `yaml:"alert" mapstructure:"alert"`
	OTP        OTPConfig        `yaml:"otp" mapstructure:"otp"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SessionConfig configures the visit lifecycle.
type SessionConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes" mapstructure:"timeout_minutes"`
}

// EngineConfig holds the qualification policy knobs.
type EngineConfig struct {
	ReadinessThreshold float64 `yaml:"readiness_threshold" mapstructure:"readiness_threshold"`
}

// AnthropicConfig holds Anthropic API settings. The fast model drives
// per-message extraction and intent; the deep model drives transcript
// analysis.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	FastModel string `yaml:"fast_model" mapstructure:"fast_model"`
	DeepModel string `yaml:"deep_model" mapstructure:"deep_model"`
}

// SalesforceConfig holds Salesforce JWT auth settings. Empty ClientID
// disables CRM sync.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
	Source   string `yaml:"source" mapstructure:"source"`
}

// NotionConfig holds the dashboard mirror settings. Empty token disables
// mirroring.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// AlertConfig configures hot-lead webhook alerts.
type AlertConfig struct {
	WebhookURL     string `yaml:"webhook_url" mapstructure:"webhook_url"`
	ScoreThreshold int    `yaml:"score_threshold" mapstructure:"score_threshold"`
}

// OTPConfig configures phone verification codes.
type OTPConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	WidgetToken string `yaml:"widget_token" mapstructure:"widget_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so their env vars bind without a
	// config file.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("server.widget_token", "")
	v.SetDefault("session.timeout_minutes", 30)
	v.SetDefault("engine.readiness_threshold", 0.6)
	v.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.deep_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.source", "Chat Widget - Intelligence AI")
	v.SetDefault("alert.score_threshold", 70)
	v.SetDefault("otp.ttl_minutes", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
