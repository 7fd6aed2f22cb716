package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
	"github.com/peterldowns/testy/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveEvent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveEvent(strategy.Event{Symbol: "AAPL", Signal: strategy.ActionNone, Elapsed: time.Microsecond})
	m.ObserveEvent(strategy.Event{Symbol: "AAPL", Signal: strategy.ActionBuy, Fired: true})
	m.ObserveEvent(strategy.Event{Symbol: "BTC", Signal: strategy.ActionSell, Fired: true, Rejection: "no_such_holding"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("AAPL", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("no_such_holding")))
}

func TestObserveSummaryAndHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSummary(portfolio.Valuate(model.DefaultPortfolioState(), nil))
	m.ObserveTrade("buy", "manual")
	m.ObserveChannel("hub", 5, 20)

	assert.Equal(t, 100000.0, testutil.ToFloat64(m.Equity))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.ChannelSaturationPct.WithLabelValues("hub")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `tradesim_trades_total{side="buy",source="manual"} 1`))
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus()

	_, code := h.Report()
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.SetFeedConnected(true)
	h.SetLastTickTime(time.Now())

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "h.db"))
	assert.NoError(t, err)
	defer db.Close()
	h.CheckSQLite(context.Background(), db)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["sqlite_ok"])
	_, hasRedis := body["redis_connected"]
	assert.False(t, hasRedis)
}
