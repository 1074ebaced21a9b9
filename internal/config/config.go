package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig  `yaml:"store" mapstructure:"store"`
	Server   ServerConfig `yaml:"server" mapstructure:"server"`
	Log      LogConfig    `yaml:"log" mapstructure:"log"`
	Guard    GuardConfig  `yaml:"guard" mapstructure:"guard"`
	Features Features     `yaml:"features" mapstructure:"features"`
	Detect   DetectConfig `yaml:"detect" mapstructure:"detect"`
	Alerts   AlertsConfig `yaml:"alerts" mapstructure:"alerts"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GuardConfig configures the admin key check and the rate limiter.
type GuardConfig struct {
	// AdminMode is "enforced" or "disabled". Disabled must be chosen
	// explicitly; an enforced guard without a secret rejects everything.
	AdminMode   string          `yaml:"admin_mode" mapstructure:"admin_mode"`
	AdminSecret string          `yaml:"admin_secret" mapstructure:"admin_secret"`
	AdminHeader string          `yaml:"admin_header" mapstructure:"admin_header"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig configures the per-client, per-route token buckets.
type RateLimitConfig struct {
	Burst        int     `yaml:"burst" mapstructure:"burst"`
	RefillPerSec float64 `yaml:"refill_per_sec" mapstructure:"refill_per_sec"`
	MaxBuckets   int     `yaml:"max_buckets" mapstructure:"max_buckets"`
}

// Features are behavior toggles handed to components at construction.
type Features struct {
	// FastMode skips live stack detection during analysis.
	FastMode bool `yaml:"fast_mode" mapstructure:"fast_mode"`
	// AssertiveSearch drops detected items below detect.min_confidence.
	AssertiveSearch bool `yaml:"assertive_search" mapstructure:"assertive_search"`
	// StrictCNPJ enables check-digit verification.
	StrictCNPJ bool `yaml:"strict_cnpj" mapstructure:"strict_cnpj"`
}

// DetectConfig configures the HTTP header detector.
type DetectConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MinConfidence  float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// AlertsConfig configures the periodic alert sweep and its notifiers.
type AlertsConfig struct {
	Schedule             string `yaml:"schedule" mapstructure:"schedule"`
	LookbackHours        int    `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	HighScoreThreshold   int    `yaml:"high_score_threshold" mapstructure:"high_score_threshold"`
	LowMaturityThreshold int    `yaml:"low_maturity_threshold" mapstructure:"low_maturity_threshold"`
	WebhookURL           string `yaml:"webhook_url" mapstructure:"webhook_url"`
	SlackWebhookURL      string `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
	SlackChannel         string `yaml:"slack_channel" mapstructure:"slack_channel"`
}

// Validate checks the configuration for the given command mode
// ("serve", "migrate", "analyze", "alerts" or "score").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateGuard()...)
		errs = append(errs, c.validateAlerts()...)
	case "migrate", "analyze":
		errs = append(errs, c.validateStore()...)
	case "alerts":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAlerts()...)
	case "score":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Detect.MinConfidence < 0 || c.Detect.MinConfidence > 1 {
		errs = append(errs, "detect.min_confidence must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateGuard() []string {
	var errs []string
	switch strings.ToLower(c.Guard.AdminMode) {
	case "enforced", "disabled":
	default:
		errs = append(errs, fmt.Sprintf("guard.admin_mode %q must be enforced or disabled", c.Guard.AdminMode))
	}
	rl := c.Guard.RateLimit
	if rl.Burst <= 0 {
		errs = append(errs, "guard.rate_limit.burst must be > 0")
	}
	if rl.RefillPerSec <= 0 {
		errs = append(errs, "guard.rate_limit.refill_per_sec must be > 0")
	}
	if rl.MaxBuckets <= 0 {
		errs = append(errs, "guard.rate_limit.max_buckets must be > 0")
	}
	return errs
}

func (c *Config) validateAlerts() []string {
	var errs []string
	if c.Alerts.Schedule == "" {
		errs = append(errs, "alerts.schedule is required")
	}
	if c.Alerts.LookbackHours <= 0 {
		errs = append(errs, "alerts.lookback_hours must be > 0")
	}
	if c.Alerts.HighScoreThreshold < 0 || c.Alerts.HighScoreThreshold > 100 {
		errs = append(errs, "alerts.high_score_threshold must be between 0 and 100")
	}
	if c.Alerts.LowMaturityThreshold < 0 || c.Alerts.LowMaturityThreshold > 100 {
		errs = append(errs, "alerts.low_maturity_threshold must be between 0 and 100")
	}
	return errs
}

// Load reads configuration from file and environment. An empty configFile
// looks for an optional config.yaml in the working directory; a non-empty
// one must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("guard.admin_mode", "enforced")
	v.SetDefault("guard.admin_secret", "")
	v.SetDefault("guard.admin_header", "X-Admin-Key")
	v.SetDefault("guard.rate_limit.burst", 20)
	v.SetDefault("guard.rate_limit.refill_per_sec", 5)
	v.SetDefault("guard.rate_limit.max_buckets", 10000)
	v.SetDefault("features.fast_mode", false)
	v.SetDefault("features.assertive_search", false)
	v.SetDefault("features.strict_cnpj", false)
	v.SetDefault("detect.timeout_secs", 10)
	v.SetDefault("detect.user_agent", "prospect-intel/1.0 (+stack-detect)")
	v.SetDefault("detect.max_retries", 2)
	v.SetDefault("detect.requests_per_sec", 2)
	v.SetDefault("detect.min_confidence", 0.6)
	v.SetDefault("alerts.schedule", "@every 5m")
	v.SetDefault("alerts.lookback_hours", 24)
	v.SetDefault("alerts.high_score_threshold", 80)
	v.SetDefault("alerts.low_maturity_threshold", 30)
	v.SetDefault("alerts.webhook_url", "")
	v.SetDefault("alerts.slack_webhook_url", "")
	v.SetDefault("alerts.slack_channel", "")

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
