// Package projection contains the projectors that keep the read model
// in step with the event log. Each projector handles exactly one
// (aggregateType, eventType) pair and must be idempotent: re-delivery
// of an event may not corrupt the view.
package projection

import (
	"context"

	log "github.com/sirupsen/logrus"

	"marketplace/domain"
	"marketplace/publisher"
)

// ProductViews is the slice of the read model product projectors write.
type ProductViews interface {
	GetProductView(ctx context.Context, id string) (*domain.ProductView, error)
	UpsertProductView(ctx context.Context, v domain.ProductView) error
	MergeProductView(ctx context.Context, id string, patch domain.ProductViewPatch) (*domain.ProductView, error)
	DeleteProductView(ctx context.Context, id string) error
}

type SellerViews interface {
	UpsertSellerView(ctx context.Context, v domain.SellerView) error
}

type LocationViews interface {
	UpsertLocationView(ctx context.Context, v domain.LocationView) error
	SetCurrentLocationView(ctx context.Context, userID, locationID string, lat, lon float64) error
}

// NotificationSink is the notification-creation collaborator invoked by
// the login projector.
type NotificationSink interface {
	AddNotification(ctx context.Context, n domain.Notification) error
}

// Views is the full read-model surface the projectors need; it is
// satisfied by readmodel.Store.
type Views interface {
	ProductViews
	SellerViews
	LocationViews
	NotificationSink
}

// projector binds one (aggregateType, eventType) pair to a handler.
type projector struct {
	aggregate domain.AggregateType
	event     string
	handle    func(ctx context.Context, ev domain.Event) error
}

func (p projector) AggregateType() domain.AggregateType            { return p.aggregate }
func (p projector) EventType() string                              { return p.event }
func (p projector) Handle(ctx context.Context, ev domain.Event) error { return p.handle(ctx, ev) }

// RegisterAll wires every concrete projector into the publisher. The
// registry is built once at process start and passed by reference; no
// hidden global registration.
func RegisterAll(p *publisher.Publisher, views Views, logger *log.Logger) {
	for _, pr := range All(views, logger) {
		p.Register(pr)
	}
}

// All returns the full projector set in registration order.
func All(views Views, logger *log.Logger) []publisher.Projector {
	return []publisher.Projector{
		NewProductCreated(views),
		NewProductUpdated(views),
		NewProductDeleted(views),
		NewInventoryCreated(views),
		NewInventoryUpdated(views),
		NewInventoryDeleted(views),
		NewSellerRegistered(views),
		NewLocationAdded(views),
		NewCurrentLocationSet(views),
		NewUserLoggedIn(views, logger),
	}
}
