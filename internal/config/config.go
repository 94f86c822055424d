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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
}

// StoreConfig configures the analysis result store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnalysisConfig holds the default spatial analysis parameters.
type AnalysisConfig struct {
	MinOverlap      int    `yaml:"min_overlap" mapstructure:"min_overlap"`
	MaxCombinations int    `yaml:"max_combinations" mapstructure:"max_combinations"`
	ProductionKey   string `yaml:"production_key" mapstructure:"production_key"`
}

// ProvidersConfig holds isoline provider credentials and tuning.
type ProvidersConfig struct {
	Default     string        `yaml:"default" mapstructure:"default"`
	Mapbox      MapboxConfig  `yaml:"mapbox" mapstructure:"mapbox"`
	Iso4App     Iso4AppConfig `yaml:"iso4app" mapstructure:"iso4app"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// MapboxConfig holds Mapbox Isochrone API settings.
type MapboxConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Profile   string  `yaml:"profile" mapstructure:"profile"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// Iso4AppConfig holds Iso4App API settings.
type Iso4AppConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Mobility  string  `yaml:"mobility" mapstructure:"mobility"`
	SpeedType string  `yaml:"speed_type" mapstructure:"speed_type"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ISOLYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "isolysis.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("analysis.min_overlap", 2)
	v.SetDefault("analysis.max_combinations", 100)
	v.SetDefault("analysis.production_key", "Prod")
	v.SetDefault("providers.default", "mapbox")
	v.SetDefault("providers.concurrency", 4)
	v.SetDefault("providers.mapbox.base_url", "https://api.mapbox.com/isochrone/v1")
	v.SetDefault("providers.mapbox.profile", "driving")
	v.SetDefault("providers.mapbox.rate_limit", 5)
	v.SetDefault("providers.iso4app.base_url", "https://api.iso4app.net/rest/1.3/isoline")
	v.SetDefault("providers.iso4app.mobility", "motor_vehicle")
	v.SetDefault("providers.iso4app.speed_type", "normal")
	v.SetDefault("providers.iso4app.rate_limit", 2)

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
