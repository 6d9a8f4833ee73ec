package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string        `yaml:"port" validate:"required,numeric"`
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`
	LogLevel    slog.Level    `yaml:"log_level"`

	// remote history source for /ingest/run
	HistoryURL string `yaml:"history_url" validate:"omitempty,url"`

	ModelStore   string `yaml:"model_store" validate:"oneof=file redis postgres badger none"`
	ModelPath    string `yaml:"model_path"`
	ModelKey     string `yaml:"model_key" validate:"required"`
	RedisAddr    string `yaml:"redis_addr" validate:"required_if=ModelStore redis"`
	PostgresConn string `yaml:"postgres_conn" validate:"required_if=ModelStore postgres"`
	BadgerDir    string `yaml:"badger_dir"`

	InfluxURL    string `yaml:"influxdb_url" validate:"omitempty,url"`
	InfluxToken  string `yaml:"influxdb_token"`
	InfluxOrg    string `yaml:"influxdb_org"`
	InfluxBucket string `yaml:"influxdb_bucket"`

	RetrainSchedule   string        `yaml:"retrain_schedule"`
	TrainRatePerMin   int           `yaml:"train_rate_per_min" validate:"gte=0"`
	ForecastCacheSize int           `yaml:"forecast_cache_size" validate:"gt=0"`
	ForecastCacheTTL  time.Duration `yaml:"forecast_cache_ttl" validate:"gte=0"`
	PlaceholderStats  bool          `yaml:"placeholder_stats"`
	OtelEndpoint      string        `yaml:"otel_endpoint"`

	ForestTrees int   `yaml:"forest_trees" validate:"gt=0"`
	ForestSeed  int64 `yaml:"forest_seed"`
}

func Defaults() Config {
	return Config{
		Port:              "8080",
		HTTPTimeout:       15 * time.Second,
		LogLevel:          slog.LevelInfo,
		ModelStore:        "file",
		ModelPath:         "data",
		ModelKey:          "adforecast/model",
		InfluxOrg:         "adforecast",
		InfluxBucket:      "ad_history",
		TrainRatePerMin:   6,
		ForecastCacheSize: 256,
		ForecastCacheTTL:  10 * time.Minute,
		ForestTrees:       100,
		ForestSeed:        42,
	}
}

// FromEnv reads the configuration from the environment on top of Defaults.
func FromEnv() Config { return applyEnv(Defaults()) }

// Load reads the YAML file named by CONFIG_FILE, if any, then lets
// environment variables override it, and validates the result.
func Load() (Config, error) {
	cfg := Defaults()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", p, err)
		}
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(c Config) Config {
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			c.HTTPTimeout = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = slog.LevelInfo
		if v == "debug" {
			c.LogLevel = slog.LevelDebug
		}
	}
	if v := os.Getenv("FORECAST_CACHE_TTL_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			c.ForecastCacheTTL = d
		}
	}
	c.Port = envOr("PORT", c.Port)
	c.HistoryURL = envOr("HISTORY_URL", c.HistoryURL)
	c.ModelStore = envOr("MODEL_STORE", c.ModelStore)
	c.ModelPath = envOr("MODEL_PATH", c.ModelPath)
	c.ModelKey = envOr("MODEL_KEY", c.ModelKey)
	c.RedisAddr = envOr("REDIS_ADDR", c.RedisAddr)
	c.PostgresConn = envOr("POSTGRES_CONN", c.PostgresConn)
	c.BadgerDir = envOr("BADGER_DIR", c.BadgerDir)
	c.InfluxURL = envOr("INFLUXDB_URL", c.InfluxURL)
	c.InfluxToken = envOr("INFLUXDB_TOKEN", c.InfluxToken)
	c.InfluxOrg = envOr("INFLUXDB_ORG", c.InfluxOrg)
	c.InfluxBucket = envOr("INFLUXDB_BUCKET", c.InfluxBucket)
	c.RetrainSchedule = envOr("RETRAIN_SCHEDULE", c.RetrainSchedule)
	c.OtelEndpoint = envOr("OTEL_ENDPOINT", c.OtelEndpoint)
	c.TrainRatePerMin = envInt("TRAIN_RATE_PER_MIN", c.TrainRatePerMin)
	c.ForecastCacheSize = envInt("FORECAST_CACHE_SIZE", c.ForecastCacheSize)
	c.ForestTrees = envInt("FOREST_TREES", c.ForestTrees)
	c.ForestSeed = int64(envInt("FOREST_SEED", int(c.ForestSeed)))
	if v := os.Getenv("PLACEHOLDER_STATS"); v != "" {
		c.PlaceholderStats, _ = strconv.ParseBool(v)
	}
	return c
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
