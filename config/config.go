package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log        Logger         `mapstructure:"logger"`
	API        API            `mapstructure:"api"`
	Storage    Storage        `mapstructure:"storage"`
	PolicyGate PolicyGate     `mapstructure:"policy_gate"`
	Scenarios  ScenarioSource `mapstructure:"scenarios"`
	Cache      Cache          `mapstructure:"cache"`
	Engine     Engine         `mapstructure:"engine"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type API struct {
	Port             int `mapstructure:"port"`
	MaxRequestPerSec int `mapstructure:"max_request_per_sec"`
	RequestBurst     int `mapstructure:"request_burst"`
}

// Storage points at the read-only artifact store that holds one directory per
// backtest run (index.json, run_config.json, metrics_<mode>.json,
// equity_curve_<mode>.csv, history_<mode>.csv, comparison.md).
type Storage struct {
	BaseURL     string        `mapstructure:"base_url"`
	BaseTimeout time.Duration `mapstructure:"base_timeout"`
	BearerToken string        `mapstructure:"bearer_token"`
}

type PolicyGate struct {
	BaseURL          string        `mapstructure:"base_url"`
	BaseTimeout      time.Duration `mapstructure:"base_timeout"`
	BearerToken      string        `mapstructure:"bearer_token"`
	MaxRequestPerSec int           `mapstructure:"max_request_per_sec"`
	RequestBurst     int           `mapstructure:"request_burst"`
	TopK             int           `mapstructure:"top_k"`
}

type ScenarioSource struct {
	BaseURL     string        `mapstructure:"base_url"`
	BaseTimeout time.Duration `mapstructure:"base_timeout"`
	BearerToken string        `mapstructure:"bearer_token"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	RunsIndexTTL      time.Duration `mapstructure:"runs_index_ttl"`
}

// Engine holds the tunables of the parse/downsample pipeline.
type Engine struct {
	MaxEquityPoints  int `mapstructure:"max_equity_points"`
	EquityRowBudget  int `mapstructure:"equity_row_budget"`
	HistoryRowBudget int `mapstructure:"history_row_budget"`
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

func Load() (*Config, error) {
	// A local .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional too; defaults plus env are enough to boot.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")

	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.max_request_per_sec", 10)
	viper.SetDefault("api.request_burst", 30)

	viper.SetDefault("storage.base_timeout", 15*time.Second)
	viper.SetDefault("policy_gate.base_timeout", 60*time.Second)
	viper.SetDefault("policy_gate.max_request_per_sec", 2)
	viper.SetDefault("policy_gate.request_burst", 2)
	viper.SetDefault("policy_gate.top_k", 5)
	viper.SetDefault("scenarios.base_timeout", 15*time.Second)

	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("cache.runs_index_ttl", 30*time.Second)

	viper.SetDefault("engine.max_equity_points", 900)
	viper.SetDefault("engine.equity_row_budget", 0)
	viper.SetDefault("engine.history_row_budget", 0)
	viper.SetDefault("engine.batch_concurrency", 4)
}
