package portfolio

import (
	"context"
	"time"

	"tradesim/internal/model"

	"github.com/rs/zerolog"
)

const defaultSaveTimeout = 2 * time.Second

// Persister writes ledger state to a PortfolioStore off the ledger's
// critical path. Only the newest pending state is kept: a slow store skips
// intermediate states instead of queueing them.
type Persister struct {
	store   model.PortfolioStore
	pending chan model.PortfolioState
	timeout time.Duration
	log     zerolog.Logger

	// OnError is called when a save fails (for metrics).
	OnError func(err error)
}

// NewPersister creates a Persister for store.
func NewPersister(store model.PortfolioStore, logger zerolog.Logger) *Persister {
	return &Persister{
		store:   store,
		pending: make(chan model.PortfolioState, 1),
		timeout: defaultSaveTimeout,
		log:     logger.With().Str("component", "persister").Logger(),
	}
}

// Enqueue replaces any pending state with state. It never blocks as long as
// callers are serialized, which the ledger guarantees.
func (p *Persister) Enqueue(state model.PortfolioState) {
	select {
	case <-p.pending:
	default:
		// do nothing.
	}
	select {
	case p.pending <- state:
	default:
		p.log.Warn().Msg("pending slot busy, dropping state")
	}
}

// Observer adapts Enqueue to a ledger CommitFunc.
func (p *Persister) Observer() CommitFunc {
	return func(state model.PortfolioState, _ model.Trade) { p.Enqueue(state) }
}

// Run saves pending states until ctx is cancelled, then flushes whatever is
// still pending.
func (p *Persister) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case state := <-p.pending:
				p.save(context.Background(), state)
			default:
			}
			return
		case state := <-p.pending:
			p.save(ctx, state)
		}
	}
}

func (p *Persister) save(parent context.Context, state model.PortfolioState) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()
	if err := p.store.SavePortfolio(ctx, state); err != nil {
		p.log.Error().Err(err).Msg("save portfolio failed")
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}
	p.log.Debug().Int("trades", len(state.TradeHistory)).Msg("portfolio saved")
}

// Journaler appends committed trades to a TradeJournal from a buffered queue.
type Journaler struct {
	journal model.TradeJournal
	queue   chan model.Trade
	log     zerolog.Logger
}

// NewJournaler creates a Journaler with the given queue size.
func NewJournaler(journal model.TradeJournal, size int, logger zerolog.Logger) *Journaler {
	if size <= 0 {
		size = 256
	}
	return &Journaler{
		journal: journal,
		queue:   make(chan model.Trade, size),
		log:     logger.With().Str("component", "journaler").Logger(),
	}
}

// Observer enqueues each committed trade, dropping it if the queue is full.
func (j *Journaler) Observer() CommitFunc {
	return func(_ model.PortfolioState, t model.Trade) {
		select {
		case j.queue <- t:
		default:
			j.log.Warn().Str("id", t.ID).Msg("journal queue full, dropping trade")
		}
	}
}

// Run drains the queue until ctx is cancelled, then records whatever is
// still queued before returning.
func (j *Journaler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return
		case t := <-j.queue:
			j.record(ctx, t)
		}
	}
}

func (j *Journaler) flush() {
	n := 0
	for {
		select {
		case t := <-j.queue:
			j.record(context.Background(), t)
			n++
		default:
			if n > 0 {
				j.log.Info().Int("trades", n).Msg("journal flushed on shutdown")
			}
			return
		}
	}
}

func (j *Journaler) record(parent context.Context, t model.Trade) {
	ctx, cancel := context.WithTimeout(parent, defaultSaveTimeout)
	defer cancel()
	if err := j.journal.RecordTrade(ctx, t); err != nil {
		j.log.Error().Err(err).Str("id", t.ID).Msg("record trade failed")
	}
}
