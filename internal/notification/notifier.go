// Package notification delivers trade alerts to external channels: the log,
// an HTTP webhook and a Kafka topic.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradesim/internal/strategy"

	"github.com/rs/zerolog"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	TS      time.Time  `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log (useful for development).
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	ev := n.log.Info()
	switch alert.Level {
	case AlertWarning:
		ev = n.log.Warn()
	case AlertCritical:
		ev = n.log.Error()
	}
	ev.Str("symbol", alert.Symbol).Str("title", alert.Title).Msg(alert.Message)
	return nil
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromEvent turns an engine event into an alert. Only executed trades and
// rejected strategy orders are worth an alert.
func FromEvent(ev strategy.Event) (Alert, bool) {
	switch {
	case ev.Trade != nil:
		t := ev.Trade
		return Alert{
			Level:   AlertInfo,
			Title:   fmt.Sprintf("%s %s", t.Side, t.Symbol),
			Message: fmt.Sprintf("%d @ %s (fee %s): %s", t.Quantity, t.Price.StringFixed(2), t.Fee.StringFixed(2), ev.Reason),
			Symbol:  ev.Symbol,
			TS:      ev.TS,
		}, true
	case ev.Rejection != "":
		return Alert{
			Level:   AlertWarning,
			Title:   fmt.Sprintf("%s %s rejected", ev.Signal, ev.Symbol),
			Message: fmt.Sprintf("%s at %s: %s", ev.Reason, ev.Point.Time, ev.Rejection),
			Symbol:  ev.Symbol,
			TS:      ev.TS,
		}, true
	}
	return Alert{}, false
}

const defaultSendTimeout = 5 * time.Second

// Dispatcher sends alerts for engine events off the engine's goroutines.
// When the queue is full, alerts are dropped.
type Dispatcher struct {
	notifier Notifier
	queue    chan Alert
	log      zerolog.Logger

	// OnDrop is called when an alert is dropped because the queue is full.
	OnDrop func()
}

// NewDispatcher creates a Dispatcher with room for depth pending alerts.
func NewDispatcher(n Notifier, depth int, logger zerolog.Logger) *Dispatcher {
	if depth <= 0 {
		depth = 64
	}
	return &Dispatcher{
		notifier: n,
		queue:    make(chan Alert, depth),
		log:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Observe queues an alert for ev, if it warrants one.
func (d *Dispatcher) Observe(ev strategy.Event) {
	alert, ok := FromEvent(ev)
	if !ok {
		return
	}
	select {
	case d.queue <- alert:
	default:
		if d.OnDrop != nil {
			d.OnDrop()
		}
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-d.queue:
			sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
			if err := d.notifier.Send(sendCtx, alert); err != nil {
				d.log.Warn().Err(err).Str("title", alert.Title).Msg("alert delivery failed")
			}
			cancel()
		}
	}
}
