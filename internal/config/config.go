package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pricing-cli/internal/commission"
	"github.com/sells-group/pricing-cli/internal/usage"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Meli       MeliConfig        `yaml:"meli" mapstructure:"meli"`
	Anthropic  AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Rates      usage.Rates       `yaml:"rates" mapstructure:"rates"`
	Commission commission.Config `yaml:"commission" mapstructure:"commission"`
	Pipeline   PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Bulk       BulkConfig        `yaml:"bulk" mapstructure:"bulk"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MeliConfig holds MercadoLibre API settings.
type MeliConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SiteID      string `yaml:"site_id" mapstructure:"site_id"`
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// PipelineConfig configures analysis behavior.
type PipelineConfig struct {
	PriceTolerance        float64 `yaml:"price_tolerance" mapstructure:"price_tolerance"`
	MaxOffers             int     `yaml:"max_offers" mapstructure:"max_offers"`
	TargetMarginPercent   float64 `yaml:"target_margin_percent" mapstructure:"target_margin_percent"`
	MaxAlternativeQueries int     `yaml:"max_alternative_queries" mapstructure:"max_alternative_queries"`
	SearchFanout          int     `yaml:"search_fanout" mapstructure:"search_fanout"`
	ClassifyConcurrency   int     `yaml:"classify_concurrency" mapstructure:"classify_concurrency"`
	ClassifyRatePerSec    float64 `yaml:"classify_rate_per_sec" mapstructure:"classify_rate_per_sec"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MinComparables        int     `yaml:"min_comparables" mapstructure:"min_comparables"`
	StageTimeoutSecs      int     `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	SearchRetries         int     `yaml:"search_retries" mapstructure:"search_retries"`
	ClassifyRetries       int     `yaml:"classify_retries" mapstructure:"classify_retries"`
}

// BulkConfig configures bulk analysis.
type BulkConfig struct {
	MaxConcurrentProducts int `yaml:"max_concurrent_products" mapstructure:"max_concurrent_products"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.path", "pricing.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("meli.base_url", "https://api.mercadolibre.com")
	v.SetDefault("meli.site_id", "MLM")
	v.SetDefault("meli.timeout_secs", 20)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("pipeline.price_tolerance", 0.30)
	v.SetDefault("pipeline.max_offers", 50)
	v.SetDefault("pipeline.target_margin_percent", 30.0)
	v.SetDefault("pipeline.max_alternative_queries", 5)
	v.SetDefault("pipeline.search_fanout", 3)
	v.SetDefault("pipeline.classify_concurrency", 5)
	v.SetDefault("pipeline.classify_rate_per_sec", 4.0)
	v.SetDefault("pipeline.confidence_threshold", 0.7)
	v.SetDefault("pipeline.min_comparables", 3)
	v.SetDefault("pipeline.stage_timeout_secs", 60)
	v.SetDefault("pipeline.search_retries", 2)
	v.SetDefault("pipeline.classify_retries", 2)
	v.SetDefault("bulk.max_concurrent_products", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Rates) == 0 {
		cfg.Rates = usage.DefaultRates()
	}
	if cfg.Commission.CommissionRate == 0 && len(cfg.Commission.ShippingTiers) == 0 {
		cfg.Commission = commission.DefaultConfig()
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
