package command

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"marketplace/domain"
)

type InventoryStore interface {
	GetInventory(ctx context.Context, productID string) (*domain.Inventory, error)
	InsertInventory(ctx context.Context, inv domain.Inventory) error
	UpdateInventory(ctx context.Context, inv domain.Inventory) error
	DeleteInventory(ctx context.Context, productID string) error
}

type InventoryService struct {
	store     InventoryStore
	publisher EventPublisher
	now       func() time.Time
}

func NewInventoryService(store InventoryStore, pub EventPublisher) *InventoryService {
	return &InventoryService{store: store, publisher: pub, now: nowUTC}
}

func (s *InventoryService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdCreateInventory, s.CreateInventory)
	r.Register(domain.CmdUpdateInventory, s.UpdateInventory)
	r.Register(domain.CmdDeleteInventory, s.DeleteInventory)
}

func (s *InventoryService) CreateInventory(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.CreateInventoryData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if data.ProductID == "" {
		return Result{}, domain.Invalid("productId", "must not be empty")
	}
	if data.Quantity < 0 {
		return Result{}, domain.Invalid("quantity", "must not be negative")
	}

	inv := domain.Inventory{
		ProductID: data.ProductID,
		SellerID:  data.SellerID,
		Quantity:  data.Quantity,
		Revision:  1,
		UpdatedAt: s.now(),
	}
	if err := s.store.InsertInventory(ctx, inv); err != nil {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateInventory, inv.ProductID, domain.InventoryCreated, inv.Revision, domain.InventoryCreatedData{
		ProductID: inv.ProductID,
		SellerID:  inv.SellerID,
		Quantity:  inv.Quantity,
	})
}

func (s *InventoryService) UpdateInventory(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.UpdateInventoryData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if data.ProductID == "" {
		return Result{}, domain.Invalid("productId", "must not be empty")
	}
	if data.Quantity == nil {
		return Result{}, domain.Invalid("quantity", "must be set")
	}
	if *data.Quantity < 0 {
		return Result{}, domain.Invalid("quantity", "must not be negative")
	}

	inv, err := s.store.GetInventory(ctx, data.ProductID)
	if err != nil {
		return Result{}, err
	}
	if inv == nil {
		return Result{}, domain.ErrNotFound
	}
	inv.Quantity = *data.Quantity
	inv.Revision++
	inv.UpdatedAt = s.now()
	if err := s.store.UpdateInventory(ctx, *inv); err != nil {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateInventory, inv.ProductID, domain.InventoryUpdated, inv.Revision, domain.InventoryUpdatedData{
		ProductID: inv.ProductID,
		Quantity:  data.Quantity,
	})
}

// DeleteInventory tolerates an already absent row so product deletion
// can always fan out to it.
func (s *InventoryService) DeleteInventory(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.DeleteInventoryData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if data.ProductID == "" {
		return Result{}, domain.Invalid("productId", "must not be empty")
	}
	inv, err := s.store.GetInventory(ctx, data.ProductID)
	if err != nil {
		return Result{}, err
	}
	version := 1
	if inv != nil {
		version = inv.Revision + 1
	}
	if err := s.store.DeleteInventory(ctx, data.ProductID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateInventory, data.ProductID, domain.InventoryDeleted, version, domain.InventoryDeletedData{
		ProductID: data.ProductID,
	})
}
