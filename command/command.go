// Package command hosts the write side: every state change enters the
// system as a command, is validated against the write store, and leaves
// as exactly one domain event per handled command.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"marketplace/domain"
)

// EventPublisher is the single choke point through which handlers emit
// events. Satisfied by publisher.Publisher.
type EventPublisher interface {
	PublishAndSave(ctx context.Context, ev domain.Event) (domain.Event, error)
}

// Result acknowledges a handled command. Reads served immediately after
// may still observe the previous state.
type Result struct {
	AggregateID string `json:"aggregateId"`
	EventID     string `json:"eventId"`
	EventType   string `json:"eventType"`
}

// HandlerFunc executes one command type end to end.
type HandlerFunc func(ctx context.Context, env domain.CommandEnvelope) (Result, error)

// Dispatcher routes a command to its handler. Handlers that fan out
// follow-up commands depend on this interface rather than on each other.
type Dispatcher interface {
	Dispatch(ctx context.Context, env domain.CommandEnvelope) (Result, error)
}

type UnknownCommandTypeError struct {
	Type string
}

func (e *UnknownCommandTypeError) Error() string {
	return fmt.Sprintf("unknown command type %q", e.Type)
}

// Registry maps command types to handlers. It is assembled once at
// startup; Register is not safe for concurrent use.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]HandlerFunc{}}
}

// Register panics on duplicates: two handlers claiming one command type
// is a wiring bug, not a runtime condition.
func (r *Registry) Register(cmdType string, h HandlerFunc) {
	if _, dup := r.handlers[cmdType]; dup {
		panic(fmt.Sprintf("command: duplicate handler for %q", cmdType))
	}
	r.handlers[cmdType] = h
}

func (r *Registry) Dispatch(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	h, ok := r.handlers[env.Command.Type]
	if !ok {
		return Result{}, &UnknownCommandTypeError{Type: env.Command.Type}
	}
	return h(ctx, env)
}

// followUp builds an internal command issued by a handler on behalf of
// the same actor. It inherits the parent's idempotency key with a
// suffix so replays of the parent replay the children too.
func followUp(parent domain.CommandEnvelope, cmdType string, data []byte) domain.CommandEnvelope {
	return domain.CommandEnvelope{
		ActorID: parent.ActorID,
		Command: domain.Command{
			ID:             parent.Command.ID + "/" + cmdType,
			IdempotencyKey: parent.Command.IdempotencyKey + "/" + cmdType,
			Type:           cmdType,
			Data:           data,
			Timestamp:      parent.Command.Timestamp,
		},
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

// emit marshals the payload and pushes exactly one event through the
// publisher, translating the stored event into a command Result.
func emit(ctx context.Context, pub EventPublisher, agg domain.AggregateType, id, eventType string, version int, data any) (Result, error) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return Result{}, err
	}
	stored, err := pub.PublishAndSave(ctx, domain.Event{
		AggregateID:   id,
		AggregateType: agg,
		Type:          eventType,
		Data:          raw,
		Version:       version,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{AggregateID: id, EventID: stored.ID, EventType: eventType}, nil
}
