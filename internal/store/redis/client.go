// Package redis keeps the simulator's shared state in Redis: the portfolio
// blob, per-symbol strategy settings and a pub/sub stream of engine events.
// Every call goes through a CircuitBreaker so a dead Redis degrades to
// local-only operation instead of stalling the engine.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Config configures the Redis connection.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces every key and channel.
	Prefix string `yaml:"prefix" default:"tradesim"`
	// MaxFailures consecutive errors open the breaker for ResetTimeout.
	MaxFailures  int           `yaml:"max_failures" default:"5"`
	ResetTimeout time.Duration `yaml:"reset_timeout" default:"10s"`
}

// Client is a connected Redis client plus its breaker and key layout.
type Client struct {
	rdb     *goredis.Client
	breaker *CircuitBreaker
	keys    Keys
	log     zerolog.Logger
}

// New creates a Client and pings the server.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	l := logger.With().Str("component", "redis").Logger()
	l.Info().Str("addr", cfg.Addr).Msg("connected")

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.OnStateChange = func(from, to State) {
		l.Warn().Stringer("from", from).Stringer("to", to).Msg("circuit breaker")
	}

	return &Client{
		rdb:     rdb,
		breaker: cb,
		keys:    NewKeys(cfg.Prefix),
		log:     l,
	}, nil
}

// Redis returns the underlying client for health checks.
func (c *Client) Redis() *goredis.Client { return c.rdb }

// Breaker returns the circuit breaker guarding c.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Keys returns the key layout.
func (c *Client) Keys() Keys { return c.keys }

// Close closes the connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Keys builds the names of every key and channel under one prefix.
type Keys struct {
	prefix string
}

// NewKeys returns the layout for prefix; an empty prefix means "tradesim".
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "tradesim"
	}
	return Keys{prefix: prefix}
}

// Portfolio is the string key holding the JSON state of account.
func (k Keys) Portfolio(account string) string {
	return k.prefix + ":portfolio:" + account
}

// Strategies is the hash of per-symbol strategy configs.
func (k Keys) Strategies() string { return k.prefix + ":strategy" }

// Latest is the string key holding the newest event for symbol.
func (k Keys) Latest(symbol string) string { return k.prefix + ":latest:" + symbol }

// EventsChannel carries every engine event.
func (k Keys) EventsChannel() string { return k.prefix + ":events" }

// TradesChannel carries only events that produced a trade.
func (k Keys) TradesChannel() string { return k.prefix + ":trades" }
