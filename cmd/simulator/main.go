// cmd/simulator runs the trading simulator: a tick feed drives the strategy
// engine, trades settle in the in-memory ledger, and the HTTP/websocket
// gateway serves the dashboard.
//
// Usage:
//
//	go run ./cmd/simulator --config=config.yaml
//
// Every config value can be overridden by environment variables, see
// package config.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradesim/config"
	"tradesim/internal/bus"
	"tradesim/internal/feed"
	"tradesim/internal/gateway"
	"tradesim/internal/indicator"
	"tradesim/internal/logger"
	"tradesim/internal/metrics"
	"tradesim/internal/model"
	"tradesim/internal/notification"
	"tradesim/internal/portfolio"
	"tradesim/internal/scheduler"
	"tradesim/internal/store/redis"
	"tradesim/internal/store/sqlite"
	"tradesim/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	tickBuffer    = 1024
	eventBuffer   = 256
	statsInterval = 5 * time.Second
	healthPeriod  = 15 * time.Second
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to the YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[simulator] %v\n", err)
		os.Exit(1)
	}

	cfg.Log.Service = "simulator"
	log, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[simulator] %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("simulator failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	health := metrics.NewHealthStatus()

	// ---- Storage ----
	var (
		db        *sqlite.Store
		rc        *redis.Client
		rstore    *redis.Store
		portStore model.PortfolioStore
		journal   model.TradeJournal
		stratDB   model.StrategyConfigStore
		snapSink  scheduler.SnapshotSink
		err       error
	)
	if !cfg.SQLite.Disabled {
		db, err = sqlite.Open(sqlite.Config{DBPath: cfg.SQLite.Path, Account: cfg.Portfolio.Account, Logger: log})
		if err != nil {
			return err
		}
		defer db.Close()
		portStore, journal, snapSink = db, db, db
		health.SQLiteEnabled = true
	}
	if cfg.Redis.Enabled {
		rc, err = redis.New(cfg.Redis, log)
		if err != nil {
			return err
		}
		defer rc.Close()
		rstore = redis.NewStore(rc, cfg.Portfolio.Account)
		stratDB = rstore
		if portStore == nil {
			portStore = rstore
		}
		health.RedisEnabled = true

		cb := rc.Breaker()
		logChange := cb.OnStateChange
		cb.OnStateChange = func(from, to redis.State) {
			logChange(from, to)
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == redis.StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
	}

	// ---- Ledger ----
	initial := model.DefaultPortfolioState()
	if portStore != nil {
		loadCtx, loadCancel := context.WithTimeout(ctx, 5*time.Second)
		initial, err = portStore.LoadPortfolio(loadCtx)
		loadCancel()
		if err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
	}
	if len(initial.TradeHistory) == 0 && len(initial.Holdings) == 0 {
		initial.CashBalance = decimal.NewFromFloat(cfg.Portfolio.StartingCash)
	}

	fee := decimal.NewFromFloat(*cfg.Portfolio.FeePct)
	ledger := portfolio.NewLedger(initial, portfolio.LedgerConfig{
		FeePct: &fee,
		Logger: log,
	})
	log.Info().
		Str("account", cfg.Portfolio.Account).
		Stringer("cash", initial.CashBalance).
		Int("holdings", len(initial.Holdings)).
		Int("trades", len(initial.TradeHistory)).
		Msg("portfolio loaded")

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	var persistTo []model.PortfolioStore
	if db != nil {
		persistTo = append(persistTo, db)
	}
	if rstore != nil {
		persistTo = append(persistTo, rstore)
	}
	for _, store := range persistTo {
		p := portfolio.NewPersister(store, log)
		p.OnError = func(error) { m.PersistErrors.Inc() }
		ledger.Observe(p.Observer())
		spawn(func() { p.Run(ctx) })
	}
	if journal != nil {
		j := portfolio.NewJournaler(journal, 256, log)
		ledger.Observe(j.Observer())
		spawn(func() { j.Run(ctx) })
	}
	ledger.Observe(func(_ model.PortfolioState, t model.Trade) {
		m.ObserveTrade(string(t.Side), string(t.Source))
	})

	// ---- Engine ----
	engine := strategy.NewEngine(ledger, strategy.EngineConfig{
		Window: cfg.Sim.Window,
		Logger: log,
		OnEvent: func(ev strategy.Event) {
			m.ObserveEvent(ev)
			health.SetFeedConnected(true)
			health.SetLastTickTime(ev.TS)
		},
	})
	assets := cfg.Assets()
	for _, a := range assets {
		engine.AddAsset(a.Symbol, cfg.Strategy)
	}

	hub := gateway.NewHub(cfg.HTTP.ReplayBuffer, log)
	hub.OnClients = func(n int) { m.WSClients.Set(float64(n)) }

	strategies := gateway.NewStrategyService(engine, stratDB, hub, log)
	restoreCtx, restoreCancel := context.WithTimeout(ctx, 5*time.Second)
	strategies.Restore(restoreCtx)
	restoreCancel()

	// ---- Feed ----
	src, err := newSource(cfg, assets, m, health, log)
	if err != nil {
		return err
	}

	rawTicks := make(chan model.Tick, tickBuffer)
	ticks := bus.New[model.Tick](tickBuffer)
	ticks.OnDrop = func(name string) { m.FanoutDropsTotal.WithLabelValues("ticks:" + name).Inc() }
	engineIn := ticks.Subscribe("engine")

	events := make(chan strategy.Event, eventBuffer)
	fan := bus.New[strategy.Event](eventBuffer)
	fan.OnDrop = func(name string) { m.FanoutDropsTotal.WithLabelValues("events:" + name).Inc() }
	hubCh := fan.Subscribe("hub")
	alertCh := fan.Subscribe("alerts")

	// ---- Event consumers ----
	spawn(func() { hub.Run(ctx, hubCh) })

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()
	dispatcher := notification.NewDispatcher(notifier, 64, log)
	spawn(func() { dispatcher.Run(ctx) })
	spawn(func() {
		for ev := range alertCh {
			dispatcher.Observe(ev)
		}
	})

	if db != nil {
		recordCh := ticks.Subscribe("recorder")
		spawn(func() { db.RecordTicks(ctx, recordCh) })
	}
	var redisStats func() gateway.RedisStats
	if rc != nil {
		pub := redis.NewPublisher(rc, 0)
		cb := rc.Breaker()
		redisStats = func() gateway.RedisStats {
			return gateway.RedisStats{
				Breaker:  cb.CurrentState().String(),
				Trips:    cb.Trips(),
				Buffered: pub.Buffered(),
				Dropped:  pub.Dropped(),
			}
		}
		pubCh := fan.Subscribe("redis")
		spawn(func() { pub.Run(ctx) })
		spawn(func() {
			for ev := range pubCh {
				if !pub.Enqueue(ev) {
					m.FanoutDropsTotal.WithLabelValues("redis_publisher").Inc()
				}
			}
		})
	}

	spawn(func() { ticks.Run(ctx, rawTicks) })
	spawn(func() { engine.Run(ctx, engineIn, events) })
	spawn(func() { fan.Run(ctx, events) })
	spawn(func() {
		if err := src.Run(ctx, rawTicks); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
		}
		log.Info().Msg("feed finished")
	})

	channels := func() []bus.ChannelStat {
		return append(ticks.ChannelStats(), fan.ChannelStats()...)
	}
	spawn(func() { reportChannels(ctx, channels, m) })

	// ---- Scheduler ----
	valuate := func() portfolio.Summary {
		return portfolio.Valuate(ledger.State(), portfolio.FloatPrices(engine.Prices()))
	}
	sched := scheduler.New(ctx, cfg.Scheduler, valuate, snapSink, notifier, log)
	sched.OnSummary = m.ObserveSummary
	if err := sched.RegisterAll(); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// ---- Health ----
	var (
		rdb   *goredis.Client
		sqlDB *sql.DB
	)
	if rc != nil {
		rdb = rc.Redis()
	}
	if db != nil {
		sqlDB = db.DB()
	}
	health.StartLivenessChecker(ctx, rdb, sqlDB, healthPeriod)

	// ---- HTTP ----
	var equity gateway.EquityHistory
	if db != nil {
		equity = db
	}
	srv := gateway.New(gateway.Deps{
		Ledger:         ledger,
		Engine:         engine,
		Strategies:     strategies,
		Hub:            hub,
		Journal:        journal,
		Metrics:        m,
		Health:         health,
		Equity:         equity,
		Channels:       channels,
		Redis:          redisStats,
		IndicatorSpecs: indicator.ParseSpecs(cfg.Analytics.Specs),
		Logger:         log,
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start(cfg.HTTP.Addr) }()

	log.Info().
		Str("feed", cfg.Sim.Feed).
		Int("assets", len(assets)).
		Str("addr", cfg.HTTP.Addr).
		Msg("simulator started")

	// ---- Wait for shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Stringer("signal", sig).Msg("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	cancel()
	wg.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

func newSource(cfg *config.Config, assets []model.Asset, m *metrics.Metrics, health *metrics.HealthStatus, log zerolog.Logger) (feed.Source, error) {
	switch cfg.Sim.Feed {
	case config.FeedWebSocket:
		ing, err := feed.NewWSIngest(feed.WSConfig{URL: cfg.Sim.FeedURL, Logger: log})
		if err != nil {
			return nil, err
		}
		ing.OnReconnect = func() {
			health.SetFeedConnected(false)
			m.FeedReconnects.Inc()
		}
		ing.OnDrop = func(string) { m.FeedDropsTotal.Inc() }
		return ing, nil
	case config.FeedReplay:
		rec, err := feed.LoadRecording(cfg.Sim.ReplayPath)
		if err != nil {
			return nil, err
		}
		return feed.NewReplayer(rec, cfg.Sim.ReplaySpeed, log), nil
	default:
		return feed.NewRandomWalk(feed.RandomWalkConfig{
			Assets:   assets,
			Interval: cfg.Sim.TickInterval,
			Warmup:   cfg.Sim.Warmup,
			Seed:     cfg.Sim.Seed,
			Logger:   log,
		}), nil
	}
}

// newNotifier combines the log notifier with the configured webhook and
// Kafka sinks. The returned func closes whatever needs closing.
func newNotifier(cfg *config.Config, log zerolog.Logger) (notification.Notifier, func(), error) {
	sinks := notification.Multi{notification.NewLogNotifier(log)}
	closeFn := func() {}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	if cfg.Kafka.Enabled {
		k, err := notification.NewKafkaNotifier(cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				log.Warn().Err(err).Msg("close kafka writer")
			}
		}
	}
	return sinks, closeFn, nil
}

func reportChannels(ctx context.Context, stats func() []bus.ChannelStat, m *metrics.Metrics) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range stats() {
				m.ObserveChannel(s.Name, s.Len, s.Cap)
			}
		}
	}
}
