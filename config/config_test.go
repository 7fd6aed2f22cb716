package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradesim/internal/model"

	"github.com/peterldowns/testy/assert"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	assert.NoError(t, err)

	assert.Equal(t, FeedRandomWalk, c.Sim.Feed)
	assert.Equal(t, 1800*time.Millisecond, c.Sim.TickInterval)
	assert.Equal(t, 30, c.Sim.Window)
	assert.Equal(t, 100000.0, c.Portfolio.StartingCash)
	assert.Equal(t, 0.2, *c.Portfolio.FeePct)
	assert.Equal(t, "default", c.Portfolio.Account)
	assert.Equal(t, model.DefaultStrategyConfig(), c.Strategy)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, "data/tradesim.db", c.SQLite.Path)
	assert.Equal(t, "tradesim", c.Redis.Prefix)
	assert.Equal(t, "*/30 * * * * *", c.Scheduler.SnapshotCron)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, len(model.Universe()), len(c.Assets()))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
sim:
  tick_interval: 250ms
  assets: [BTC, ETH]
  seed: 7
portfolio:
  fee_pct: 0.5
strategy:
  enabled: false
  ma_period: 3
  rules:
    ma_cross: true
    rsi_overbought: false
`)
	c, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, c.Sim.TickInterval)
	assert.Equal(t, int64(7), c.Sim.Seed)
	assert.Equal(t, 0.5, *c.Portfolio.FeePct)
	assert.False(t, c.Strategy.Enabled)
	assert.Equal(t, 3, c.Strategy.MAPeriod)
	assert.Equal(t, 14, c.Strategy.RSIPeriod)
	assert.True(t, c.Strategy.AutoExecute)
	assert.False(t, c.Strategy.Rules.RSIOverbought)

	assets := c.Assets()
	assert.Equal(t, 2, len(assets))
	assert.Equal(t, model.ClassCrypto, assets[0].Class)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "2s")
	t.Setenv("ASSETS", "AAPL, XAU")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.Sim.TickInterval)
	assert.Equal(t, []string{"AAPL", "XAU"}, c.Sim.Assets)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "tradesim.alerts", c.Kafka.Topic)
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("SEED", "abc")

	_, err := Load("")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "TICK_INTERVAL"))
	assert.True(t, strings.Contains(err.Error(), "SEED"))
}

func TestZeroFeeKept(t *testing.T) {
	path := writeConfig(t, `
portfolio:
  fee_pct: 0
`)
	c, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, *c.Portfolio.FeePct)

	t.Setenv("FEE_PCT", "0")
	c, err = Load("")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, *c.Portfolio.FeePct)
}

func TestValidationAggregatesErrors(t *testing.T) {
	path := writeConfig(t, `
sim:
  feed: websocket
  assets: [DOGE]
portfolio:
  fee_pct: 150
`)
	_, err := Load(path)
	assert.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "FeedURL"))
	assert.True(t, strings.Contains(msg, "FeePct"))
	assert.True(t, strings.Contains(msg, `unknown symbol "DOGE"`))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
