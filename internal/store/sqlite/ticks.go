package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradesim/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// RecordTicks reads ticks from tickCh and inserts them in batched
// transactions, flushing every defaultBatchSize ticks or defaultFlushDelay,
// whichever comes first. Blocks until ctx is cancelled or tickCh is closed.
func (s *Store) RecordTicks(ctx context.Context, tickCh <-chan model.Tick) {
	batch := make([]model.Tick, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := s.insertTicks(batch); err != nil {
			s.log.Error().Err(err).Int("ticks", len(batch)).Msg("tick batch insert failed")
		} else {
			s.log.Debug().Int("ticks", len(batch)).Dur("took", time.Since(start)).Msg("tick batch committed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case t, ok := <-tickCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, t)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (s *Store) insertTicks(ticks []model.Tick) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO ticks (symbol, seq, label, price, open, high, low, close, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		seq, ok := model.ParseLabel(t.Point.Time)
		if !ok {
			s.log.Warn().Str("symbol", t.Symbol).Str("label", t.Point.Time).Msg("tick label is not T-n, skipped")
			continue
		}
		var open, high, low, cls sql.NullFloat64
		if c := t.Candle; c != nil {
			open = sql.NullFloat64{Float64: c.Open, Valid: true}
			high = sql.NullFloat64{Float64: c.High, Valid: true}
			low = sql.NullFloat64{Float64: c.Low, Valid: true}
			cls = sql.NullFloat64{Float64: c.Close, Valid: true}
		}
		if _, err := stmt.Exec(t.Symbol, seq, t.Point.Time, t.Point.Price, open, high, low, cls, t.TS.UnixNano()); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ReadTicks returns recorded ticks of the given symbols (all when empty),
// ordered by tick sequence and then symbol, so each symbol's ticks stay in
// order and symbols interleave like a live feed.
func (s *Store) ReadTicks(ctx context.Context, symbols ...string) ([]model.Tick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, label, price, open, high, low, close, ts FROM ticks ORDER BY seq, symbol`)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	want := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		want[sym] = true
	}

	var out []model.Tick
	for rows.Next() {
		var (
			t                    model.Tick
			open, high, low, cls sql.NullFloat64
			ts                   int64
		)
		if err := rows.Scan(&t.Symbol, &t.Point.Time, &t.Point.Price, &open, &high, &low, &cls, &ts); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		if len(want) > 0 && !want[t.Symbol] {
			continue
		}
		if open.Valid && high.Valid && low.Valid && cls.Valid {
			t.Candle = &model.Candle{Open: open.Float64, High: high.Float64, Low: low.Float64, Close: cls.Float64}
		}
		t.TS = time.Unix(0, ts).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
