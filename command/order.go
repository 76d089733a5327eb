package command

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marketplace/domain"
)

type OrderStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	InsertOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

// OrderService validates stock before any mutation, then persists the
// order and lowers stock through update-inventory follow-ups. The
// order-created event is emitted even though no projector consumes it
// today; the log is the system of record for future projections.
type OrderService struct {
	store      OrderStore
	publisher  EventPublisher
	dispatcher Dispatcher
	logger     *log.Logger
	now        func() time.Time
}

func NewOrderService(store OrderStore, pub EventPublisher, d Dispatcher, logger *log.Logger) *OrderService {
	return &OrderService{store: store, publisher: pub, dispatcher: d, logger: logger, now: nowUTC}
}

func (s *OrderService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdCreateOrder, s.CreateOrder)
}

func (s *OrderService) CreateOrder(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.CreateOrderData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if env.ActorID == "" {
		return Result{}, domain.Invalid("actorId", "must not be empty")
	}
	if len(data.Items) == 0 {
		return Result{}, domain.Invalid("items", "must not be empty")
	}

	// First pass only reads: any validation failure leaves the system
	// untouched.
	type line struct {
		item   domain.OrderItem
		newQty int
	}
	lines := make([]line, 0, len(data.Items))
	var total float64
	for i, it := range data.Items {
		if it.Count <= 0 {
			return Result{}, domain.Invalid(fmt.Sprintf("items[%d].count", i), "must be positive")
		}
		p, err := s.store.GetProduct(ctx, it.ProductID)
		if err != nil {
			return Result{}, err
		}
		if p == nil {
			return Result{}, domain.Invalid(fmt.Sprintf("items[%d].productId", i), "unknown product")
		}
		inv, err := s.store.GetInventory(ctx, it.ProductID)
		if err != nil {
			return Result{}, err
		}
		if inv == nil || inv.Quantity < it.Count {
			return Result{}, domain.Invalid(fmt.Sprintf("items[%d].count", i), "insufficient stock")
		}
		it.SellerID = p.SellerID
		it.UnitPrice = p.DiscountedPrice
		lines = append(lines, line{item: it, newQty: inv.Quantity - it.Count})
		total += p.DiscountedPrice * float64(it.Count)
	}

	o := domain.Order{
		ID:        uuid.NewString(),
		BuyerID:   env.ActorID,
		Total:     total,
		CreatedAt: s.now(),
	}
	for _, ln := range lines {
		o.Items = append(o.Items, ln.item)
	}
	if err := s.store.InsertOrder(ctx, o); err != nil {
		return Result{}, err
	}

	res, err := emit(ctx, s.publisher, domain.AggregateOrder, o.ID, domain.OrderCreated, 1, domain.OrderCreatedData{
		BuyerID: o.BuyerID,
		Items:   o.Items,
		Total:   o.Total,
	})
	if err != nil {
		return Result{}, err
	}

	for _, ln := range lines {
		qty := ln.newQty
		raw, err := sonic.Marshal(domain.UpdateInventoryData{ProductID: ln.item.ProductID, Quantity: &qty})
		if err != nil {
			s.logger.WithError(err).Error("stock follow-up marshal failed")
			continue
		}
		child := followUp(env, domain.CmdUpdateInventory, raw)
		child.Command.ID += "/" + ln.item.ProductID
		child.Command.IdempotencyKey += "/" + ln.item.ProductID
		if _, err := s.dispatcher.Dispatch(ctx, child); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"orderId":   o.ID,
				"productId": ln.item.ProductID,
			}).Error("stock follow-up failed")
		}
	}
	return res, nil
}
