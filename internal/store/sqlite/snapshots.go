package sqlite

import (
	"context"
	"fmt"
	"time"

	"tradesim/internal/portfolio"

	"github.com/shopspring/decimal"
)

// keepSnapshots bounds the equity_snapshots table per account.
const keepSnapshots = 10000

// EquitySnapshot is a point on the account's equity curve.
type EquitySnapshot struct {
	TS           time.Time       `json:"ts"`
	Cash         decimal.Decimal `json:"cash"`
	MarketValue  decimal.Decimal `json:"marketValue"`
	Equity       decimal.Decimal `json:"equity"`
	RealizedPL   decimal.Decimal `json:"realizedPL"`
	UnrealizedPL decimal.Decimal `json:"unrealizedPL"`
}

// SnapshotOf extracts the equity curve point from a valuation.
func SnapshotOf(ts time.Time, s portfolio.Summary) EquitySnapshot {
	return EquitySnapshot{
		TS:           ts.UTC(),
		Cash:         s.Cash,
		MarketValue:  s.MarketValue,
		Equity:       s.Equity,
		RealizedPL:   s.RealizedPL,
		UnrealizedPL: s.UnrealizedPL,
	}
}

// SaveEquitySnapshot appends a snapshot and prunes the oldest beyond the
// retention limit.
func (s *Store) SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equity_snapshots (account, ts, cash, market_value, equity, realized_pl, unrealized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.account, snap.TS.UTC().Format(time.RFC3339Nano),
		snap.Cash.String(), snap.MarketValue.String(), snap.Equity.String(),
		snap.RealizedPL.String(), snap.UnrealizedPL.String())
	if err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM equity_snapshots WHERE account = ? AND id NOT IN (
			SELECT id FROM equity_snapshots WHERE account = ? ORDER BY id DESC LIMIT ?)`,
		s.account, s.account, keepSnapshots)
	if err != nil {
		s.log.Warn().Err(err).Msg("prune snapshots failed")
	}
	return nil
}

// EquitySnapshots returns the last limit snapshots, oldest first.
func (s *Store) EquitySnapshots(ctx context.Context, limit int) ([]EquitySnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, cash, market_value, equity, realized_pl, unrealized_pl FROM (
			SELECT id, ts, cash, market_value, equity, realized_pl, unrealized_pl
			FROM equity_snapshots WHERE account = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`, s.account, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []EquitySnapshot{}
	for rows.Next() {
		var ts string
		var vals [5]string
		if err := rows.Scan(&ts, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4]); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap EquitySnapshot
		if snap.TS, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("snapshot timestamp: %w", err)
		}
		fields := []*decimal.Decimal{&snap.Cash, &snap.MarketValue, &snap.Equity, &snap.RealizedPL, &snap.UnrealizedPL}
		for i, f := range fields {
			if *f, err = decimal.NewFromString(vals[i]); err != nil {
				return nil, fmt.Errorf("snapshot value: %w", err)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
