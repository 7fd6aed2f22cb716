// Package metrics exposes Prometheus metrics and the /healthz status of the
// simulator.
package metrics

import (
	"net/http"

	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the simulator.
type Metrics struct {
	reg prometheus.Gatherer

	TicksTotal      *prometheus.CounterVec // labels: symbol
	SignalsTotal    *prometheus.CounterVec // labels: symbol, action
	TradesTotal     *prometheus.CounterVec // labels: side, source
	RejectionsTotal *prometheus.CounterVec // labels: reason
	TickEvalDur     prometheus.Histogram

	CashBalance  prometheus.Gauge
	Equity       prometheus.Gauge
	RealizedPL   prometheus.Gauge
	UnrealizedPL prometheus.Gauge

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name
	FeedDropsTotal       prometheus.Counter
	FeedReconnects       prometheus.Counter
	WSClients            prometheus.Gauge

	PersistErrors prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers all metrics with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_ticks_total",
			Help: "Ticks processed by the strategy engine",
		}, []string{"symbol"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_signals_total",
			Help: "Strategy signals fired (after deduplication)",
		}, []string{"symbol", "action"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_trades_total",
			Help: "Trades committed to the ledger",
		}, []string{"side", "source"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_order_rejections_total",
			Help: "Orders rejected by the ledger",
		}, []string{"reason"}),
		TickEvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_tick_eval_duration_seconds",
			Help:    "Indicator recomputation and rule evaluation latency per tick",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		CashBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_cash_balance",
			Help: "Account cash balance",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_equity",
			Help: "Cash plus market value of holdings",
		}),
		RealizedPL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_realized_pl",
			Help: "Realized profit and loss",
		}),
		UnrealizedPL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_unrealized_pl",
			Help: "Unrealized profit and loss of priced holdings",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_fanout_drops_total",
			Help: "Events dropped by the bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradesim_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		FeedDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_feed_dropped_ticks_total",
			Help: "Ticks dropped by the feed because the engine was behind",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_feed_reconnects_total",
			Help: "Websocket feed reconnection attempts",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_ws_clients",
			Help: "Connected websocket clients",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_persist_errors_total",
			Help: "Failed portfolio saves",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.SignalsTotal,
		m.TradesTotal,
		m.RejectionsTotal,
		m.TickEvalDur,
		m.CashBalance,
		m.Equity,
		m.RealizedPL,
		m.UnrealizedPL,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.FeedDropsTotal,
		m.FeedReconnects,
		m.WSClients,
		m.PersistErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveEvent records one processed engine tick.
func (m *Metrics) ObserveEvent(ev strategy.Event) {
	m.TicksTotal.WithLabelValues(ev.Symbol).Inc()
	m.TickEvalDur.Observe(ev.Elapsed.Seconds())
	if ev.Fired {
		m.SignalsTotal.WithLabelValues(ev.Symbol, string(ev.Signal)).Inc()
	}
	if ev.Rejection != "" {
		m.RejectionsTotal.WithLabelValues(ev.Rejection).Inc()
	}
}

// ObserveTrade counts a committed trade. Use as a ledger observer.
func (m *Metrics) ObserveTrade(side, source string) {
	m.TradesTotal.WithLabelValues(side, source).Inc()
}

// ObserveRejection counts a rejected manual order.
func (m *Metrics) ObserveRejection(err error) {
	m.RejectionsTotal.WithLabelValues(portfolio.Rejection(err)).Inc()
}

// ObserveSummary updates the account gauges.
func (m *Metrics) ObserveSummary(s portfolio.Summary) {
	m.CashBalance.Set(s.Cash.InexactFloat64())
	m.Equity.Set(s.Equity.InexactFloat64())
	m.RealizedPL.Set(s.RealizedPL.InexactFloat64())
	m.UnrealizedPL.Set(s.UnrealizedPL.InexactFloat64())
}

// ObserveChannel records the fill level of a named channel.
func (m *Metrics) ObserveChannel(name string, length, capacity int) {
	if capacity == 0 {
		return
	}
	m.ChannelSaturationPct.WithLabelValues(name).Set(float64(length) / float64(capacity) * 100)
}
