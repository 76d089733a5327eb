package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"marketplace/domain"
)

// EventLog is the append-only durable store of domain events, keyed by
// aggregate. Stored events are never mutated or removed; version is
// caller-supplied metadata and is not enforced.
type EventLog struct {
	table *aztables.Client
}

// NewEventLog builds an event log over the storage's events table.
func NewEventLog(s *Storage) *EventLog {
	return &EventLog{table: s.events}
}

var lastEventStamp int64

// nextEventStamp returns a strictly increasing nanosecond timestamp so
// row keys order events by arrival within an aggregate partition.
func nextEventStamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastEventStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastEventStamp, last, now) {
			return now
		}
	}
}

func eventRowKey(stamp int64) string {
	return fmt.Sprintf("%020d", stamp)
}

// Append durably persists the event, assigning its id and createdAt.
func (l *EventLog) Append(ctx context.Context, ev domain.Event) (domain.Event, error) {
	stamp := nextEventStamp()
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Unix(0, stamp).UTC()

	ent := eventEntity{
		Entity:        Entity{PartitionKey: ev.AggregateID, RowKey: eventRowKey(stamp)},
		EventID:       ev.ID,
		AggregateType: string(ev.AggregateType),
		EventType:     ev.Type,
		Data:          string(ev.Data),
		Version:       ev.Version,
		CreatedAt:     stamp,
		CreatedAtType: EdmInt64,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Event{}, err
	}
	if _, err := l.table.AddEntity(ctx, payload, nil); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// EventsFor returns all events for an aggregate in storage order.
func (l *EventLog) EventsFor(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", aggregateID)
	pager := l.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	events := []domain.Event{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent eventEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			events = append(events, domain.Event{
				ID:            ent.EventID,
				AggregateID:   ent.PartitionKey,
				AggregateType: domain.AggregateType(ent.AggregateType),
				Type:          ent.EventType,
				Data:          json.RawMessage(ent.Data),
				Version:       ent.Version,
				CreatedAt:     fromNanos(ent.CreatedAt),
			})
		}
	}
	return events, nil
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
