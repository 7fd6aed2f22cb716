package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/pattern"
	"tradesim/internal/portfolio"
	"tradesim/internal/store/sqlite"
	"tradesim/internal/strategy"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	defaultTradeLimit  = 50
	maxTradeLimit      = 500
	defaultEquityLimit = 100
	maxEquityLimit     = 1000
)

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func symbolParam(c echo.Context) string {
	return strings.ToUpper(c.Param("symbol"))
}

func (s *Server) listAssets(c echo.Context) error {
	tracked := make(map[string]bool)
	for _, sym := range s.d.Engine.Symbols() {
		tracked[sym] = true
	}
	out := make([]AssetView, 0, len(tracked))
	for _, a := range model.Universe() {
		if !tracked[a.Symbol] {
			continue
		}
		v := AssetView{Asset: a}
		if ev, seen := s.d.Engine.Latest(a.Symbol); seen {
			v.Price = ev.Point.Price
			v.Time = ev.Point.Time
		}
		out = append(out, v)
	}
	return ok(c, out)
}

func (s *Server) listPatterns(c echo.Context) error {
	return ok(c, pattern.Catalog())
}

func (s *Server) getPortfolio(c echo.Context) error {
	return ok(c, s.d.Ledger.State())
}

func (s *Server) summary() portfolio.Summary {
	return portfolio.Valuate(s.d.Ledger.State(), portfolio.FloatPrices(s.d.Engine.Prices()))
}

func (s *Server) getSummary(c echo.Context) error {
	sum := s.summary()
	if s.d.Metrics != nil {
		s.d.Metrics.ObserveSummary(sum)
	}
	return ok(c, SummaryView{Summary: sum, Risk: portfolio.Risk(sum)})
}

func (s *Server) listTrades(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultTradeLimit)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "limit", Message: err.Error()}})
	}
	if limit == 0 || limit > maxTradeLimit {
		limit = maxTradeLimit
	}

	if s.d.Journal != nil {
		trades, err := s.d.Journal.Trades(c.Request().Context(), limit)
		if err != nil {
			s.log.Error().Err(err).Msg("read trade journal")
			return internalError(c)
		}
		return ok(c, ListData{Rows: trades, Total: len(trades)})
	}

	history := s.d.Ledger.State().TradeHistory
	total := len(history)
	if len(history) > limit {
		history = history[:limit]
	}
	return ok(c, ListData{Rows: history, Total: total})
}

func (s *Server) listEquity(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultEquityLimit)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "limit", Message: err.Error()}})
	}
	if limit == 0 || limit > maxEquityLimit {
		limit = maxEquityLimit
	}
	if s.d.Equity == nil {
		return ok(c, ListData{Rows: []sqlite.EquitySnapshot{}, Total: 0})
	}
	snaps, err := s.d.Equity.EquitySnapshots(c.Request().Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("read equity snapshots")
		return internalError(c)
	}
	return ok(c, ListData{Rows: snaps, Total: len(snaps)})
}

func (s *Server) placeOrder(c echo.Context) error {
	var req OrderRequest
	if errs := bindAndValidate(c, &req); errs != nil {
		return badRequest(c, errs)
	}
	req.Symbol = strings.ToUpper(req.Symbol)
	if _, found := model.LookupAsset(req.Symbol); !found {
		return notFound(c, "unknown asset "+req.Symbol)
	}

	var price decimal.Decimal
	if req.Price != nil {
		price = *req.Price
	} else {
		ev, seen := s.d.Engine.Latest(req.Symbol)
		if !seen {
			return dataResponse(c, http.StatusConflict, []ValidationError{{
				Code: "ERR_NO_PRICE", Field: "price", Message: "no market price for " + req.Symbol + " yet",
			}})
		}
		price = decimal.NewFromFloat(ev.Point.Price)
	}

	trade, err := s.d.Ledger.Execute(portfolio.Order{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    price,
		Source:   model.SourceManual,
	})
	if err != nil {
		if s.d.Metrics != nil {
			s.d.Metrics.ObserveRejection(err)
		}
		return dataResponse(c, http.StatusUnprocessableEntity, []ValidationError{{
			Code:    "ERR_" + strings.ToUpper(portfolio.Rejection(err)),
			Message: err.Error(),
		}})
	}
	if s.d.Hub != nil {
		s.d.Hub.Broadcast(KindTrade, trade.Symbol, trade)
	}
	return dataResponse(c, http.StatusCreated, trade)
}

func (s *Server) getStrategy(c echo.Context) error {
	sym := symbolParam(c)
	cfg, err := s.d.Strategies.Get(sym)
	if err != nil {
		return s.engineError(c, err)
	}
	mem, _ := s.d.Engine.Memory(sym)
	view := StrategyView{Symbol: sym, Config: cfg, Memory: mem, Impact: decimal.Zero}
	if ev, seen := s.d.Engine.Latest(sym); seen {
		view.Impact = portfolio.PositionImpact(s.d.Ledger.State(), sym, decimal.NewFromFloat(ev.Point.Price))
	}
	return ok(c, view)
}

func (s *Server) putStrategy(c echo.Context) error {
	sym := symbolParam(c)
	cfg, err := s.d.Strategies.Get(sym)
	if err != nil {
		return s.engineError(c, err)
	}
	// fields absent from the body keep their current values
	if errs := bindPartial(c, &cfg); errs != nil {
		return badRequest(c, errs)
	}
	if err := s.d.Strategies.Set(c.Request().Context(), sym, cfg); err != nil {
		return s.engineError(c, err)
	}
	return ok(c, cfg)
}

func (s *Server) getIndicators(c echo.Context) error {
	sym := symbolParam(c)
	series, err := s.d.Engine.Series(sym)
	if err != nil {
		return s.engineError(c, err)
	}

	specs := s.d.IndicatorSpecs
	if q := c.QueryParam("specs"); q != "" {
		specs = indicator.ParseSpecs(q)
		if len(specs) == 0 {
			return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "specs", Message: "no valid indicator specs in " + q}})
		}
	}
	eng, err := indicator.NewEngine(specs)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "specs", Message: err.Error()}})
	}

	return ok(c, IndicatorsView{
		Symbol:  sym,
		Points:  len(series),
		Results: eng.Process(model.Prices(series)),
	})
}

func (s *Server) getAnalytics(c echo.Context) error {
	sym := symbolParam(c)
	series, err := s.d.Engine.Series(sym)
	if err != nil {
		return s.engineError(c, err)
	}
	view := AnalyticsView{
		Symbol:     sym,
		Points:     len(series),
		Indicators: indicator.Compute(series, indicator.AnalyticsParams()),
		Signal:     strategy.ActionNone,
	}
	if a, found := model.LookupAsset(sym); found {
		view.Class = a.Class
	}
	if ev, seen := s.d.Engine.Latest(sym); seen {
		view.Price = ev.Point.Price
		view.Time = ev.Point.Time
		view.Signal = ev.Signal
		view.Reason = ev.Reason
		if info, described := pattern.Describe(ev.Pattern); described {
			view.Pattern = &info
		}
	}
	return ok(c, view)
}

func (s *Server) listEvents(c echo.Context) error {
	if s.d.Hub == nil {
		return notFound(c, "event stream disabled")
	}
	since, err := queryInt(c, "since", 0)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "since", Message: err.Error()}})
	}
	envs, complete := s.d.Hub.Since(int64(since))
	return ok(c, map[string]any{
		"seq":       s.d.Hub.Seq(),
		"complete":  complete,
		"envelopes": envs,
	})
}

// Stats is GET /api/stats: process and pipeline health at a glance.
type Stats struct {
	UptimeSec   int64                 `json:"uptime_sec"`
	Goroutines  int                   `json:"goroutines"`
	HeapAllocMB float64               `json:"heap_alloc_mb"`
	SysMB       float64               `json:"sys_mb"`
	GCRuns      uint32                `json:"gc_runs"`
	Clients     int                   `json:"clients"`
	Seq         int64                 `json:"seq"`
	Latency     LatencySummary        `json:"latency_ms"`
	Channels    []bus.ChannelStat     `json:"channels,omitempty"`
	Redis       *RedisStats           `json:"redis,omitempty"`
	Windows     []strategy.WindowStat `json:"windows,omitempty"`
	TS          time.Time             `json:"ts"`
}

func (s *Server) getStats(c echo.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st := Stats{
		UptimeSec:   int64(time.Since(s.started).Seconds()),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		SysMB:       float64(ms.Sys) / 1024 / 1024,
		GCRuns:      ms.NumGC,
		TS:          time.Now().UTC(),
	}
	if s.d.Hub != nil {
		st.Clients = s.d.Hub.ClientCount()
		st.Seq = s.d.Hub.Seq()
		st.Latency = s.d.Hub.Latency.Summary()
	}
	if s.d.Channels != nil {
		st.Channels = s.d.Channels()
	}
	if s.d.Redis != nil {
		r := s.d.Redis()
		st.Redis = &r
	}
	if s.d.Engine != nil {
		st.Windows = s.d.Engine.Windows()
	}
	return ok(c, st)
}

func (s *Server) engineError(c echo.Context, err error) error {
	if errors.Is(err, strategy.ErrUnknownAsset) {
		return notFound(c, err.Error())
	}
	s.log.Error().Err(err).Msg("engine")
	return internalError(c)
}
