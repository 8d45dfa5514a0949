package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"guardforce-cctv/be/models"
	"guardforce-cctv/be/repository"
)

// Ticker is the part of time.Ticker the dispatcher uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// EventSource yields at most one event per cycle. ok is false when the cycle
// produced nothing.
type EventSource interface {
	Next(ctx context.Context) (event models.CCTVEvent, ok bool, err error)
}

// EventStore persists dispatched events. The registry satisfies it.
type EventStore interface {
	CreateEvent(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error)
}

// EventSink mirrors dispatched events somewhere else (a Redis stream).
type EventSink interface {
	Consume(ctx context.Context, event models.CCTVEvent) error
}

// Alerter receives critical events.
type Alerter interface {
	Alert(ctx context.Context, event models.CCTVEvent)
}

// ShouldAlert reports whether an event belongs on the alert channel.
func ShouldAlert(e models.CCTVEvent) bool {
	return e.Severity == models.SeverityCritical
}

type DispatcherOption func(*Dispatcher)

func WithSinks(sinks ...EventSink) DispatcherOption {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

func WithAlerters(alerters ...Alerter) DispatcherOption {
	return func(d *Dispatcher) { d.alerters = append(d.alerters, alerters...) }
}

func WithTickerFactory(f TickerFactory) DispatcherOption {
	return func(d *Dispatcher) { d.tickers = f }
}

type subscription struct {
	id      uint64
	handler func(models.CCTVEvent)
	active  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Dispatcher hands events to subscribers. Every subscription runs its own
// cycle; events from that cycle go to that subscription only. Published
// events go to every active subscriber in registration order. Delivery is
// at most once with no replay.
type Dispatcher struct {
	source   EventSource
	store    EventStore
	sinks    []EventSink
	alerters []Alerter
	interval time.Duration
	tickers  TickerFactory
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	closed bool
}

func NewDispatcher(interval time.Duration, source EventSource, store EventStore, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	d := &Dispatcher{
		source:   source,
		store:    store,
		interval: interval,
		tickers:  NewTimeTicker,
		logger:   logger.Named("dispatcher"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe starts a cycle for handler and returns its unsubscribe function.
// Unsubscribe is idempotent and may be called from inside handler. Once it
// returns no new cycle starts and dispatches that begin afterwards skip
// handler; a delivery already in flight may still complete.
func (d *Dispatcher) Subscribe(handler func(models.CCTVEvent)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{handler: handler, cancel: cancel, done: make(chan struct{})}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		cancel()
		close(sub.done)
		return func() {}
	}
	d.nextID++
	sub.id = d.nextID
	sub.active.Store(true)
	d.subs = append(d.subs, sub)
	d.mu.Unlock()

	ticker := d.tickers(d.interval)
	go d.run(ctx, sub, ticker)

	d.logger.Debug("Subscriber added", zap.Uint64("subscription_id", sub.id))
	return func() { d.unsubscribe(sub) }
}

func (d *Dispatcher) unsubscribe(sub *subscription) {
	sub.once.Do(func() {
		sub.active.Store(false)
		sub.cancel()

		d.mu.Lock()
		for i, s := range d.subs {
			if s == sub {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
		d.logger.Debug("Subscriber removed", zap.Uint64("subscription_id", sub.id))
	})
}

func (d *Dispatcher) run(ctx context.Context, sub *subscription, ticker Ticker) {
	defer close(sub.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			d.cycle(ctx, sub)
		}
	}
}

func (d *Dispatcher) cycle(ctx context.Context, sub *subscription) {
	event, ok, err := d.source.Next(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Warn("Event source failed", zap.Uint64("subscription_id", sub.id), zap.Error(err))
		}
		return
	}
	if !ok {
		return
	}
	if _, err := d.dispatch(ctx, event, []*subscription{sub}); err != nil {
		d.logger.Warn("Dropped synthesized event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// Publish persists event, mirrors it to the sinks and delivers it to every
// active subscriber. Invalid events are rejected before anything is
// delivered.
func (d *Dispatcher) Publish(ctx context.Context, event models.CCTVEvent) (models.CCTVEvent, error) {
	d.mu.RLock()
	targets := append([]*subscription(nil), d.subs...)
	d.mu.RUnlock()
	return d.dispatch(ctx, event, targets)
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.CCTVEvent, targets []*subscription) (models.CCTVEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}
	if err := event.Validate(); err != nil {
		return event, err
	}

	if d.store != nil {
		stored, err := d.store.CreateEvent(ctx, event)
		switch {
		case err == nil:
			event = stored
		case errors.Is(err, repository.ErrInvalidInput):
			return event, err
		default:
			d.logger.Warn("Failed to persist event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	for _, sink := range d.sinks {
		if err := sink.Consume(ctx, event); err != nil {
			d.logger.Warn("Event sink failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	for _, sub := range targets {
		if sub.active.Load() {
			sub.handler(event.Clone())
		}
	}

	if ShouldAlert(event) {
		for _, a := range d.alerters {
			a.Alert(ctx, event.Clone())
		}
	}
	return event, nil
}

// SubscriberCount returns the number of active subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close unsubscribes everyone and waits for the cycles to exit. Later
// subscriptions are inert.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	subs := append([]*subscription(nil), d.subs...)
	d.mu.Unlock()

	for _, sub := range subs {
		d.unsubscribe(sub)
	}
	for _, sub := range subs {
		<-sub.done
	}
	d.logger.Info("Dispatcher closed", zap.Int("subscriptions", len(subs)))
}
