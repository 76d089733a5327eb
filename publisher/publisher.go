// Package publisher implements the publish-and-persist choke point:
// every domain event is durably appended to the event log first, then
// fanned out synchronously to the projectors registered for its type.
package publisher

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"marketplace/domain"
)

var (
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_events_published_total",
		Help: "Events durably appended to the event log.",
	}, []string{"aggregate_type", "event_type"})
	projectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_projection_failures_total",
		Help: "Projector errors absorbed during fan-out.",
	}, []string{"aggregate_type", "event_type"})
)

// Appender durably appends events to the event log.
type Appender interface {
	Append(ctx context.Context, ev domain.Event) (domain.Event, error)
}

// Projector consumes events for exactly one (aggregateType, eventType)
// pair. Handle must be idempotent: re-delivery of the same event must
// not corrupt the view.
type Projector interface {
	AggregateType() domain.AggregateType
	EventType() string
	Handle(ctx context.Context, ev domain.Event) error
}

// DeadLetter keeps failed projection payloads for forensic replay.
type DeadLetter interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Notifier announces an event whose fan-out completed without any
// projector failing, so outer layers only hear about views that
// actually changed.
type Notifier interface {
	Notify(ctx context.Context, payload any) error
}

type subKey struct {
	aggregate domain.AggregateType
	event     string
}

// Publisher fans events out to in-process subscribers after they are
// durably stored. It is constructed once at process start and passed by
// reference; there is no hidden global registration.
type Publisher struct {
	eventLog   Appender
	subs       map[subKey][]Projector
	deadLetter DeadLetter
	notifier   Notifier
	logger     *log.Logger
}

func New(eventLog Appender, logger *log.Logger) *Publisher {
	if eventLog == nil {
		panic("publisher: event log is required")
	}
	if logger == nil {
		panic("publisher: logger is required")
	}
	return &Publisher{
		eventLog: eventLog,
		subs:     make(map[subKey][]Projector),
		logger:   logger,
	}
}

// WithDeadLetter routes failed projection payloads to the given queue.
func (p *Publisher) WithDeadLetter(dl DeadLetter) *Publisher {
	p.deadLetter = dl
	return p
}

// WithNotifier announces events once their fan-out succeeds.
func (p *Publisher) WithNotifier(n Notifier) *Publisher {
	p.notifier = n
	return p
}

// Register subscribes a projector. Projectors for the same key run in
// registration order. Register is not safe for concurrent use; call it
// during wiring only.
func (p *Publisher) Register(pr Projector) {
	key := subKey{aggregate: pr.AggregateType(), event: pr.EventType()}
	p.subs[key] = append(p.subs[key], pr)
}

// PublishAndSave appends the event to the log and, only if the append
// succeeded, synchronously invokes every subscriber registered for the
// event's type. A subscriber error is logged and dead-lettered but never
// rolls back the append, fails the call, or stops sibling subscribers:
// the semantics are at-least-appended, best-effort-projected.
func (p *Publisher) PublishAndSave(ctx context.Context, ev domain.Event) (domain.Event, error) {
	stored, err := p.eventLog.Append(ctx, ev)
	if err != nil {
		return domain.Event{}, err
	}

	eventsPublished.WithLabelValues(string(stored.AggregateType), stored.Type).Inc()

	key := subKey{aggregate: stored.AggregateType, event: stored.Type}
	failed := false
	for _, pr := range p.subs[key] {
		if err := pr.Handle(ctx, stored); err != nil {
			failed = true
			projectionFailures.WithLabelValues(string(stored.AggregateType), stored.Type).Inc()
			p.logger.WithError(err).WithFields(log.Fields{
				"aggregateId":   stored.AggregateID,
				"aggregateType": stored.AggregateType,
				"eventType":     stored.Type,
				"eventId":       stored.ID,
			}).Error("projection failed")
			p.sendToDeadLetter(ctx, stored)
		}
	}

	if p.notifier != nil && !failed {
		if err := p.notifier.Notify(ctx, stored); err != nil {
			p.logger.WithError(err).WithField("eventId", stored.ID).Error("unable to announce read model update")
		}
	}
	return stored, nil
}

func (p *Publisher) sendToDeadLetter(ctx context.Context, ev domain.Event) {
	if p.deadLetter == nil {
		return
	}
	payload, err := sonic.Marshal(ev)
	if err != nil {
		p.logger.WithError(err).WithField("eventId", ev.ID).Error("unable to encode dead-letter payload")
		return
	}
	if err := p.deadLetter.Enqueue(ctx, payload); err != nil {
		p.logger.WithError(err).WithField("eventId", ev.ID).Error("unable to dead-letter failed projection")
	}
}
