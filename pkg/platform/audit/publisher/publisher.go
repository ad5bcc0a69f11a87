// Package publisher delivers audit events to their stores without blocking
// the caller.
//
// In async mode events are queued on a bounded channel and persisted by a
// single background worker. When the queue is full, general events are
// dropped and counted while security events spill into an overflow ring
// buffer that the worker drains. Close drains both before returning.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/publishers/security"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

var (
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

const persistTimeout = 5 * time.Second

// Metrics receives publisher counters.
type Metrics interface {
	IncAuditEmitted(category string)
	IncAuditDropped(category string)
}

type Publisher struct {
	store    audit.Store
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time
	capacity int

	mu       sync.RWMutex
	closed   bool
	events   chan audit.Event
	overflow *security.RingBuffer
	kick     chan struct{}
	quit     chan struct{}
	done     chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer enables background delivery with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.capacity = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock overrides the timestamp source for events that omit one.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.capacity > 0 {
		p.events = make(chan audit.Event, p.capacity)
		p.overflow = security.NewRingBuffer(p.capacity)
		p.kick = make(chan struct{}, 1)
		p.quit = make(chan struct{})
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

// Emit records an event. Request-scoped fields missing from the event are
// filled from ctx. In async mode Emit never blocks on the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = p.enrich(ctx, event)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if p.events == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.events <- event:
		return nil
	default:
	}

	if event.IsSecurity() {
		if p.overflow.Push(event) {
			p.countDropped(audit.CategorySecurity)
		}
		select {
		case p.kick <- struct{}{}:
		default:
		}
		return nil
	}

	p.countDropped(event.Category)
	p.logger.WarnContext(ctx, "audit event dropped",
		"kind", event.Kind,
		"request_id", event.RequestID,
	)
	return ErrBufferFull
}

// EmitSecurity records event on the security stream regardless of its kind.
func (p *Publisher) EmitSecurity(ctx context.Context, event audit.Event) error {
	event.Category = audit.CategorySecurity
	return p.Emit(ctx, event)
}

// Query reads persisted events when the store supports it.
func (p *Publisher) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q, ok := p.store.(audit.Querier)
	if !ok {
		return nil, errors.New("audit store does not support queries")
	}
	return q.Query(ctx, filter)
}

// Close stops accepting events and waits for queued ones to be persisted.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.quit != nil {
		close(p.quit)
		<-p.done
	}
	return nil
}

func (p *Publisher) enrich(ctx context.Context, event audit.Event) audit.Event {
	event = event.Normalize(p.now())
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	return event
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.persist(context.Background(), event)
			p.drainOverflow()
		case <-p.kick:
			p.drainOverflow()
		case <-p.quit:
			for {
				select {
				case event := <-p.events:
					p.persist(context.Background(), event)
				default:
					p.drainOverflow()
					return
				}
			}
		}
	}
}

func (p *Publisher) drainOverflow() {
	for {
		batch := p.overflow.PopBatch(64)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			p.persist(context.Background(), event)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist audit event",
			"kind", event.Kind,
			"category", event.Category,
			"error", err,
		)
		return err
	}
	if p.metrics != nil {
		p.metrics.IncAuditEmitted(string(event.Category))
	}
	return nil
}

func (p *Publisher) countDropped(category audit.EventCategory) {
	if p.metrics != nil {
		p.metrics.IncAuditDropped(string(category))
	}
}
