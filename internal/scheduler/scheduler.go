// Package scheduler runs the simulator's periodic jobs: equity snapshots
// for the equity curve and a portfolio risk report.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"tradesim/internal/notification"
	"tradesim/internal/portfolio"
	"tradesim/internal/store/sqlite"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config holds the cron expressions (with a seconds field).
type Config struct {
	SnapshotCron string `yaml:"snapshot_cron" default:"*/30 * * * * *"`
	ReportCron   string `yaml:"report_cron" default:"0 */15 * * * *"`
	// ConcentrationPct raises a warning alert when one symbol holds more
	// than this share of market value. Zero disables it.
	ConcentrationPct float64 `yaml:"concentration_pct" default:"60"`
}

// SnapshotSink stores equity curve points.
type SnapshotSink interface {
	SaveEquitySnapshot(ctx context.Context, snap sqlite.EquitySnapshot) error
}

// Valuer marks the current portfolio to the latest prices.
type Valuer func() portfolio.Summary

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	valuate  Valuer
	sink     SnapshotSink
	notifier notification.Notifier
	ctx      context.Context
	now      func() time.Time
	log      zerolog.Logger

	// OnSummary is called with every valuation the jobs compute.
	OnSummary func(portfolio.Summary)
}

// New creates a Scheduler. sink and notifier may be nil.
func New(ctx context.Context, cfg Config, valuate Valuer, sink SnapshotSink, n notification.Notifier, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		valuate:  valuate,
		sink:     sink,
		notifier: n,
		ctx:      ctx,
		now:      time.Now,
		log:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the snapshot and report jobs.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc(s.cfg.SnapshotCron, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.ReportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) summary() portfolio.Summary {
	sum := s.valuate()
	if s.OnSummary != nil {
		s.OnSummary(sum)
	}
	return sum
}

func (s *Scheduler) snapshotTask() {
	sum := s.summary()
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := s.sink.SaveEquitySnapshot(ctx, sqlite.SnapshotOf(s.now(), sum)); err != nil {
		s.log.Error().Err(err).Msg("save equity snapshot")
	}
}

func (s *Scheduler) reportTask() {
	sum := s.summary()
	risk := portfolio.Risk(sum)

	s.log.Info().
		Str("equity", sum.Equity.StringFixed(2)).
		Str("total_pl", sum.TotalPL.StringFixed(2)).
		Float64("cash_utilization_pct", risk.CashUtilizationPct).
		Int("open_positions", risk.OpenPositions).
		Msg("portfolio report")

	if s.notifier == nil {
		return
	}
	alert := reportAlert(sum, risk, s.cfg.ConcentrationPct)
	alert.TS = s.now()
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := s.notifier.Send(ctx, alert); err != nil {
		s.log.Warn().Err(err).Msg("send report")
	}
}

func reportAlert(sum portfolio.Summary, risk portfolio.RiskMetrics, concentrationPct float64) notification.Alert {
	alert := notification.Alert{
		Level: notification.AlertInfo,
		Title: "Portfolio report",
		Message: fmt.Sprintf("equity %s, P/L %s, %d open positions, %.1f%% invested",
			sum.Equity.StringFixed(2), sum.TotalPL.StringFixed(2), risk.OpenPositions, risk.CashUtilizationPct),
	}
	if concentrationPct > 0 && risk.LargestAllocationPct > concentrationPct {
		alert.Level = notification.AlertWarning
		alert.Symbol = risk.LargestAllocation
		alert.Message += fmt.Sprintf("; %s is %.1f%% of holdings", risk.LargestAllocation, risk.LargestAllocationPct)
	}
	return alert
}
