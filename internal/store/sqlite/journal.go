package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradesim/internal/model"

	"github.com/shopspring/decimal"
)

// RecordTrade appends t to the journal. Recording the same trade twice is a
// no-op.
func (s *Store) RecordTrade(ctx context.Context, t model.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertTrade(ctx, tx, s.account, t); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTrade(ctx context.Context, tx *sql.Tx, account string, t model.Trade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades (id, account, symbol, side, qty, price, fee, total, source, ts, seq)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1 FROM trades WHERE account = ?`,
		t.ID, account, t.Symbol, string(t.Side), t.Quantity,
		t.Price.String(), t.Fee.String(), t.Total.String(), string(t.Source),
		t.Timestamp.UTC().Format(time.RFC3339Nano), account)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// Trades returns the last limit trades, newest first. limit <= 0 returns all.
func (s *Store) Trades(ctx context.Context, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, qty, price, fee, total, source, ts
		FROM trades WHERE account = ? ORDER BY seq DESC LIMIT ?`, s.account, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	trades := []model.Trade{}
	for rows.Next() {
		var (
			t                 model.Trade
			side, source, ts  string
			price, fee, total string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &price, &fee, &total, &source, &ts); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = model.Side(side)
		t.Source = model.Source(source)
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.ID, err)
		}
		if t.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("trade %s fee: %w", t.ID, err)
		}
		if t.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("trade %s total: %w", t.ID, err)
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("trade %s timestamp: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
