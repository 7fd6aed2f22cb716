// Package config loads the simulator configuration: a YAML file, then
// environment overrides, then struct-tag defaults, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/logger"
	"tradesim/internal/model"
	"tradesim/internal/notification"
	"tradesim/internal/scheduler"
	"tradesim/internal/store/redis"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Feed kinds.
const (
	FeedRandomWalk = "randomwalk"
	FeedWebSocket  = "websocket"
	FeedReplay     = "replay"
)

// Config holds all application configuration. Boolean switches carry no
// default tag: creasty/defaults cannot tell an explicit false from unset.
type Config struct {
	Sim struct {
		Feed         string        `yaml:"feed" default:"randomwalk" validate:"oneof=randomwalk websocket replay"`
		TickInterval time.Duration `yaml:"tick_interval" default:"1800ms" validate:"gt=0"`
		// Window is the price history kept per asset.
		Window int `yaml:"window" default:"30" validate:"gte=2,lte=10000"`
		Warmup int `yaml:"warmup" default:"30" validate:"gte=0"`
		Seed   int64 `yaml:"seed"`
		// Assets restricts the universe; empty means every asset.
		Assets      []string `yaml:"assets"`
		FeedURL     string   `yaml:"feed_url" validate:"required_if=Feed websocket"`
		ReplayPath  string   `yaml:"replay_path" validate:"required_if=Feed replay"`
		ReplaySpeed float64  `yaml:"replay_speed" default:"1" validate:"gt=0"`
	} `yaml:"sim"`

	Portfolio struct {
		Account      string  `yaml:"account" default:"default" validate:"required"`
		StartingCash float64 `yaml:"starting_cash" default:"100000" validate:"gt=0"`
		// FeePct is a pointer so an explicit 0 survives defaults.
		FeePct *float64 `yaml:"fee_pct" default:"0.2" validate:"required,gte=0,lt=100"`
	} `yaml:"portfolio"`

	Strategy model.StrategyConfig `yaml:"strategy"`

	Analytics struct {
		// Specs lists the indicators served by /api/indicators, as
		// "TYPE:PERIOD[:K],...".
		Specs string `yaml:"specs" default:"SMA:10,RSI:14,VOL:12,MOM:6,BB:20:2"`
	} `yaml:"analytics"`

	HTTP struct {
		Addr            string        `yaml:"addr" default:":8080"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
		ReplayBuffer    int           `yaml:"replay_buffer" default:"100" validate:"gte=0"`
	} `yaml:"http"`

	Redis  redis.Config `yaml:"redis"`
	SQLite struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path" default:"data/tradesim.db"`
	} `yaml:"sqlite"`

	Kafka      notification.KafkaConfig `yaml:"kafka"`
	WebhookURL string                   `yaml:"webhook_url" validate:"omitempty,url"`
	Scheduler  scheduler.Config         `yaml:"scheduler"`
	Log        logger.Config            `yaml:"log"`
}

var validate = validator.New()

// Default returns the configuration with only defaults applied.
func Default() (*Config, error) {
	var c Config
	c.Strategy = model.DefaultStrategyConfig()
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads path (optional: "" skips the file), applies environment
// overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	var c Config
	c.Strategy = model.DefaultStrategyConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	var errs []error

	c.Sim.Feed = getEnv("FEED", c.Sim.Feed)
	c.Sim.FeedURL = getEnv("FEED_URL", c.Sim.FeedURL)
	c.Sim.ReplayPath = getEnv("REPLAY_PATH", c.Sim.ReplayPath)
	if v := getEnv("ASSETS", ""); v != "" {
		c.Sim.Assets = splitList(v)
	}
	if v := getEnv("TICK_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TICK_INTERVAL: %w", err))
		}
		c.Sim.TickInterval = d
	}
	if v := getEnv("SEED", ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEED: %w", err))
		}
		c.Sim.Seed = n
	}
	if v := getEnv("FEE_PCT", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FEE_PCT: %w", err))
		}
		c.Portfolio.FeePct = &f
	}

	c.Portfolio.Account = getEnv("ACCOUNT", c.Portfolio.Account)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.SQLite.Path = getEnv("SQLITE_PATH", c.SQLite.Path)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if v := getEnv("REDIS_ADDR", ""); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	return errors.Join(errs...)
}

// Validate checks struct rules and cross-field constraints, reporting all
// failures at once.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	for _, sym := range c.Sim.Assets {
		if _, ok := model.LookupAsset(sym); !ok {
			errs = append(errs, fmt.Errorf("sim.assets: unknown symbol %q", sym))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

// Assets resolves the configured universe.
func (c *Config) Assets() []model.Asset {
	if len(c.Sim.Assets) == 0 {
		return model.Universe()
	}
	out := make([]model.Asset, 0, len(c.Sim.Assets))
	for _, sym := range c.Sim.Assets {
		if a, ok := model.LookupAsset(sym); ok {
			out = append(out, a)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
