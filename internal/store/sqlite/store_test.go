package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/portfolio"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "test.db"), Logger: zerolog.Nop()})
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyReturnsDefault(t *testing.T) {
	s := openTestStore(t)
	state, err := s.LoadPortfolio(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff(model.DefaultPortfolioState(), state); diff != "" {
		t.Fatalf("unexpected default state (-want +got):\n%s", diff)
	}
}

func TestPortfolioRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := 0
	ledger := portfolio.NewLedger(model.DefaultPortfolioState(), portfolio.LedgerConfig{
		Now:    func() time.Time { n++; return time.Date(2024, 3, 1, 9, 0, n, 0, time.UTC) },
		Logger: zerolog.Nop(),
	})
	_, err := ledger.ExecuteBuy("MSFT", 3, decimal.RequireFromString("410.55"), portfolio.DefaultFeePct, model.SourceManual)
	assert.NoError(t, err)
	_, err = ledger.ExecuteBuy("AAPL", 10, decimal.RequireFromString("187.10"), portfolio.DefaultFeePct, model.SourceStrategy)
	assert.NoError(t, err)
	_, err = ledger.ExecuteSell("MSFT", 1, decimal.RequireFromString("420"), portfolio.DefaultFeePct, model.SourceManual)
	assert.NoError(t, err)

	want := ledger.State()
	assert.NoError(t, s.SavePortfolio(ctx, want))
	// saving again must not duplicate trades
	assert.NoError(t, s.SavePortfolio(ctx, want))

	got, err := s.LoadPortfolio(ctx)
	assert.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state changed through sqlite (-want +got):\n%s", diff)
	}
	assert.Equal(t, "MSFT", got.Holdings[0].Symbol)

	// a holding sold out is removed on the next save
	_, err = ledger.ExecuteSell("MSFT", 2, decimal.RequireFromString("415"), portfolio.DefaultFeePct, model.SourceManual)
	assert.NoError(t, err)
	assert.NoError(t, s.SavePortfolio(ctx, ledger.State()))
	got, err = s.LoadPortfolio(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(got.Holdings))
	assert.Equal(t, 4, len(got.TradeHistory))
}

func TestJournal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		tr := model.Trade{
			ID: id, Symbol: "BTC", Side: model.SideBuy, Quantity: 1,
			Price: decimal.NewFromInt(int64(25000 + i)), Fee: decimal.NewFromInt(50), Total: decimal.NewFromInt(int64(25050 + i)),
			Timestamp: time.Date(2024, 3, 1, 9, 0, i, 0, time.UTC), Source: model.SourceStrategy,
		}
		assert.NoError(t, s.RecordTrade(ctx, tr))
	}
	assert.NoError(t, s.RecordTrade(ctx, model.Trade{ID: "a", Timestamp: time.Now()}))

	trades, err := s.Trades(ctx, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(trades))
	assert.Equal(t, "c", trades[0].ID)
	assert.Equal(t, "b", trades[1].ID)
	assert.Equal(t, decimal.NewFromInt(25002), trades[0].Price)

	all, err := s.Trades(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(all))
}

func TestRecordAndReadTicks(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan model.Tick, 10)
	done := make(chan struct{})
	go func() {
		s.RecordTicks(ctx, ch)
		close(done)
	}()

	candle := model.Candle{Open: 99, High: 101, Low: 98, Close: 100}
	ch <- model.Tick{Symbol: "AAPL", Point: model.PricePoint{Time: "T-1", Price: 100}, Candle: &candle, TS: time.Unix(1, 0)}
	ch <- model.Tick{Symbol: "BTC", Point: model.PricePoint{Time: "T-1", Price: 25000}, TS: time.Unix(1, 0)}
	ch <- model.Tick{Symbol: "AAPL", Point: model.PricePoint{Time: "T-2", Price: 101}, TS: time.Unix(2, 0)}
	ch <- model.Tick{Symbol: "AAPL", Point: model.PricePoint{Time: "bogus", Price: 1}}
	close(ch)
	<-done
	cancel()

	ticks, err := s.ReadTicks(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, len(ticks))
	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, candle, *ticks[0].Candle)
	assert.Equal(t, "BTC", ticks[1].Symbol)
	assert.Nil(t, ticks[1].Candle)

	only, err := s.ReadTicks(context.Background(), "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(only))
	assert.Equal(t, "T-2", only[1].Point.Time)
}

func TestEquitySnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sum := portfolio.Valuate(model.DefaultPortfolioState(), nil)
	for i := 0; i < 3; i++ {
		assert.NoError(t, s.SaveEquitySnapshot(ctx, SnapshotOf(time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC), sum)))
	}

	snaps, err := s.EquitySnapshots(ctx, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(snaps))
	assert.Equal(t, 1, snaps[0].TS.Minute())
	assert.Equal(t, 2, snaps[1].TS.Minute())
	assert.Equal(t, model.DefaultStartingCash, snaps[1].Equity)
}
