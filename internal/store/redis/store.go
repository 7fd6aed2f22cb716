package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tradesim/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Store implements model.PortfolioStore and model.StrategyConfigStore.
type Store struct {
	c       *Client
	account string
}

var (
	_ model.PortfolioStore      = (*Store)(nil)
	_ model.StrategyConfigStore = (*Store)(nil)
)

// NewStore returns a Store for account.
func NewStore(c *Client, account string) *Store {
	if account == "" {
		account = "default"
	}
	return &Store{c: c, account: account}
}

// LoadPortfolio returns the saved state, or the default state when the key
// does not exist.
func (s *Store) LoadPortfolio(ctx context.Context) (model.PortfolioState, error) {
	var raw []byte
	err := s.c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := s.c.rdb.Get(ctx, s.c.keys.Portfolio(s.account)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		return model.PortfolioState{}, fmt.Errorf("load portfolio: %w", err)
	}
	return decodePortfolio(raw)
}

// SavePortfolio overwrites the account's state.
func (s *Store) SavePortfolio(ctx context.Context, state model.PortfolioState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	err = s.c.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.c.rdb.Set(ctx, s.c.keys.Portfolio(s.account), raw, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// LoadStrategy returns the saved config for symbol; ok is false when none
// was saved.
func (s *Store) LoadStrategy(ctx context.Context, symbol string) (cfg model.StrategyConfig, ok bool, err error) {
	var raw []byte
	err = s.c.breaker.Execute(ctx, func(ctx context.Context) error {
		b, err := s.c.rdb.HGet(ctx, s.c.keys.Strategies(), symbol).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		return cfg, false, fmt.Errorf("load strategy %s: %w", symbol, err)
	}
	if raw == nil {
		return cfg, false, nil
	}
	cfg, err = decodeStrategy(raw)
	if err != nil {
		return cfg, false, fmt.Errorf("load strategy %s: %w", symbol, err)
	}
	return cfg, true, nil
}

// SaveStrategy stores cfg for symbol.
func (s *Store) SaveStrategy(ctx context.Context, symbol string, cfg model.StrategyConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode strategy: %w", err)
	}
	err = s.c.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.c.rdb.HSet(ctx, s.c.keys.Strategies(), symbol, raw).Err()
	})
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", symbol, err)
	}
	return nil
}

// decodePortfolio parses a stored blob. A nil blob is a fresh account, and
// nil slices are normalised so callers always see empty lists.
func decodePortfolio(raw []byte) (model.PortfolioState, error) {
	if raw == nil {
		return model.DefaultPortfolioState(), nil
	}
	var state model.PortfolioState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.PortfolioState{}, fmt.Errorf("decode portfolio: %w", err)
	}
	if state.Holdings == nil {
		state.Holdings = []model.Holding{}
	}
	if state.TradeHistory == nil {
		state.TradeHistory = []model.Trade{}
	}
	return state, nil
}

// decodeStrategy fills fields missing from older blobs with defaults.
func decodeStrategy(raw []byte) (model.StrategyConfig, error) {
	cfg := model.DefaultStrategyConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.StrategyConfig{}, fmt.Errorf("decode strategy: %w", err)
	}
	return cfg, nil
}
