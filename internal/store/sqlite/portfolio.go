package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradesim/internal/model"

	"github.com/shopspring/decimal"
)

// LoadPortfolio returns the persisted account, or the default account when
// nothing has been saved yet.
func (s *Store) LoadPortfolio(ctx context.Context) (model.PortfolioState, error) {
	state := model.DefaultPortfolioState()

	var cash, realized string
	err := s.db.QueryRowContext(ctx,
		`SELECT cash, realized_pl FROM accounts WHERE account = ?`, s.account,
	).Scan(&cash, &realized)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("load account: %w", err)
	}
	if state.CashBalance, err = decimal.NewFromString(cash); err != nil {
		return state, fmt.Errorf("load account cash: %w", err)
	}
	if state.RealizedPL, err = decimal.NewFromString(realized); err != nil {
		return state, fmt.Errorf("load account realized: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, qty, avg_cost FROM holdings WHERE account = ? ORDER BY position`, s.account)
	if err != nil {
		return state, fmt.Errorf("load holdings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h model.Holding
		var avg string
		if err := rows.Scan(&h.Symbol, &h.Quantity, &avg); err != nil {
			return state, fmt.Errorf("scan holding: %w", err)
		}
		if h.AvgCost, err = decimal.NewFromString(avg); err != nil {
			return state, fmt.Errorf("holding %s avg cost: %w", h.Symbol, err)
		}
		state.Holdings = append(state.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return state, err
	}

	if state.TradeHistory, err = s.Trades(ctx, 0); err != nil {
		return state, err
	}
	return state, nil
}

// SavePortfolio replaces the persisted account with state in one transaction.
// Trades already journaled are kept as they are.
func (s *Store) SavePortfolio(ctx context.Context, state model.PortfolioState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account, cash, realized_pl, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET cash = excluded.cash, realized_pl = excluded.realized_pl, updated_at = excluded.updated_at`,
		s.account, state.CashBalance.String(), state.RealizedPL.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE account = ?`, s.account); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for i, h := range state.Holdings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO holdings (account, position, symbol, qty, avg_cost) VALUES (?, ?, ?, ?, ?)`,
			s.account, i, h.Symbol, h.Quantity, h.AvgCost.String())
		if err != nil {
			return fmt.Errorf("save holding %s: %w", h.Symbol, err)
		}
	}

	// History is newest first; store oldest first so seq grows with time.
	for i := len(state.TradeHistory) - 1; i >= 0; i-- {
		if err := insertTrade(ctx, tx, s.account, state.TradeHistory[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}
