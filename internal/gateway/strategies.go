package gateway

import (
	"context"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/strategy"

	"github.com/rs/zerolog"
)

const storeTimeout = 2 * time.Second

// StrategyService applies strategy changes to the engine, persists them
// and announces them to websocket clients. The engine is the source of
// truth; the store only seeds it at startup.
type StrategyService struct {
	engine *strategy.Engine
	store  model.StrategyConfigStore
	hub    *Hub
	log    zerolog.Logger
}

// NewStrategyService creates the service. store and hub may be nil.
func NewStrategyService(engine *strategy.Engine, store model.StrategyConfigStore, hub *Hub, logger zerolog.Logger) *StrategyService {
	return &StrategyService{
		engine: engine,
		store:  store,
		hub:    hub,
		log:    logger.With().Str("component", "strategy_store").Logger(),
	}
}

// Restore loads saved settings for every engine symbol and returns how many
// were applied. Unreadable entries keep the engine's configuration.
func (s *StrategyService) Restore(ctx context.Context) int {
	if s.store == nil {
		return 0
	}
	n := 0
	for _, sym := range s.engine.Symbols() {
		cctx, cancel := context.WithTimeout(ctx, storeTimeout)
		cfg, found, err := s.store.LoadStrategy(cctx, sym)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("restore strategy")
			continue
		}
		if !found {
			continue
		}
		if err := validate.Struct(cfg); err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("stored strategy invalid, ignored")
			continue
		}
		if s.engine.SetConfig(sym, cfg) == nil {
			n++
		}
	}
	if n > 0 {
		s.log.Info().Int("restored", n).Msg("restored strategy settings")
	}
	return n
}

// Get returns the live configuration of symbol.
func (s *StrategyService) Get(symbol string) (model.StrategyConfig, error) {
	return s.engine.Config(symbol)
}

// Set applies cfg from symbol's next tick on. A failed save is logged but
// does not undo the change.
func (s *StrategyService) Set(ctx context.Context, symbol string, cfg model.StrategyConfig) error {
	if err := s.engine.SetConfig(symbol, cfg); err != nil {
		return err
	}

	if s.store != nil {
		cctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := s.store.SaveStrategy(cctx, symbol, cfg); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("persist strategy failed")
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(KindStrategy, symbol, cfg)
	}
	return nil
}
