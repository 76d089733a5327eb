package command

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marketplace/domain"
)

type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	InsertProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, upd domain.ProductUpdate) error
	DeleteProduct(ctx context.Context, id string) error
}

// ProductService owns the product lifecycle. Inventory changes ride
// along as follow-up commands so the inventory handlers stay the single
// writer for stock.
type ProductService struct {
	store      ProductStore
	publisher  EventPublisher
	dispatcher Dispatcher
	logger     *log.Logger
	now        func() time.Time
}

func NewProductService(store ProductStore, pub EventPublisher, d Dispatcher, logger *log.Logger) *ProductService {
	return &ProductService{store: store, publisher: pub, dispatcher: d, logger: logger, now: nowUTC}
}

func (s *ProductService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdCreateProduct, s.CreateProduct)
	r.Register(domain.CmdUpdateProduct, s.UpdateProduct)
	r.Register(domain.CmdDeleteProduct, s.DeleteProduct)
}

func (s *ProductService) CreateProduct(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.CreateProductData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	sellerID := data.SellerID
	if sellerID == "" {
		sellerID = env.ActorID
	}
	if sellerID == "" {
		return Result{}, domain.Invalid("sellerId", "must not be empty")
	}
	if strings.TrimSpace(data.Name) == "" {
		return Result{}, domain.Invalid("name", "must not be empty")
	}
	if strings.TrimSpace(data.Category) == "" {
		return Result{}, domain.Invalid("category", "must not be empty")
	}
	if data.OriginalPrice <= 0 {
		return Result{}, domain.Invalid("originalPrice", "must be positive")
	}
	if data.DiscountedPrice <= 0 || data.DiscountedPrice > data.OriginalPrice {
		return Result{}, domain.Invalid("discountedPrice", "must be positive and not exceed originalPrice")
	}
	if data.Quantity < 0 {
		return Result{}, domain.Invalid("quantity", "must not be negative")
	}

	now := s.now()
	p := domain.Product{
		ID:              uuid.NewString(),
		SellerID:        sellerID,
		Name:            data.Name,
		Description:     data.Description,
		Category:        data.Category,
		OriginalPrice:   data.OriginalPrice,
		DiscountedPrice: data.DiscountedPrice,
		DiscountRate:    domain.DiscountRate(data.OriginalPrice, data.DiscountedPrice),
		LocationX:       data.LocationX,
		LocationY:       data.LocationY,
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.InsertProduct(ctx, p); err != nil {
		return Result{}, err
	}

	res, err := emit(ctx, s.publisher, domain.AggregateProduct, p.ID, domain.ProductCreated, p.Revision, domain.ProductCreatedData{
		SellerID:        p.SellerID,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
		DiscountRate:    p.DiscountRate,
		LocationX:       p.LocationX,
		LocationY:       p.LocationY,
	})
	if err != nil {
		return Result{}, err
	}

	s.followUpInventory(ctx, env, domain.CmdCreateInventory, domain.CreateInventoryData{
		ProductID: p.ID,
		SellerID:  p.SellerID,
		Quantity:  data.Quantity,
	})
	return res, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.UpdateProductData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if data.ProductID == "" {
		return Result{}, domain.Invalid("productId", "must not be empty")
	}
	p, err := s.store.GetProduct(ctx, data.ProductID)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return Result{}, domain.ErrNotFound
	}
	if env.ActorID != "" && p.SellerID != env.ActorID {
		return Result{}, domain.Invalid("productId", "not owned by actor")
	}

	original := p.OriginalPrice
	discounted := p.DiscountedPrice
	if data.OriginalPrice != nil {
		original = *data.OriginalPrice
	}
	if data.DiscountedPrice != nil {
		discounted = *data.DiscountedPrice
	}
	if original <= 0 {
		return Result{}, domain.Invalid("originalPrice", "must be positive")
	}
	if discounted <= 0 || discounted > original {
		return Result{}, domain.Invalid("discountedPrice", "must be positive and not exceed originalPrice")
	}

	upd := domain.ProductUpdate{
		ID:              p.ID,
		Name:            data.Name,
		Description:     data.Description,
		Category:        data.Category,
		OriginalPrice:   data.OriginalPrice,
		DiscountedPrice: data.DiscountedPrice,
		LocationX:       data.LocationX,
		LocationY:       data.LocationY,
		Revision:        p.Revision + 1,
		UpdatedAt:       s.now(),
	}
	var rate *int
	if data.OriginalPrice != nil || data.DiscountedPrice != nil {
		r := domain.DiscountRate(original, discounted)
		rate = &r
		upd.DiscountRate = rate
	}
	if err := s.store.UpdateProduct(ctx, upd); err != nil {
		return Result{}, err
	}

	res, err := emit(ctx, s.publisher, domain.AggregateProduct, p.ID, domain.ProductUpdated, upd.Revision, domain.ProductUpdatedData{
		Name:            data.Name,
		Description:     data.Description,
		Category:        data.Category,
		OriginalPrice:   data.OriginalPrice,
		DiscountedPrice: data.DiscountedPrice,
		DiscountRate:    rate,
		LocationX:       data.LocationX,
		LocationY:       data.LocationY,
	})
	if err != nil {
		return Result{}, err
	}

	if data.Quantity != nil {
		s.followUpInventory(ctx, env, domain.CmdUpdateInventory, domain.UpdateInventoryData{
			ProductID: p.ID,
			Quantity:  data.Quantity,
		})
	}
	return res, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.DeleteProductData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if data.ProductID == "" {
		return Result{}, domain.Invalid("productId", "must not be empty")
	}
	p, err := s.store.GetProduct(ctx, data.ProductID)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return Result{}, domain.ErrNotFound
	}
	if env.ActorID != "" && p.SellerID != env.ActorID {
		return Result{}, domain.Invalid("productId", "not owned by actor")
	}
	if err := s.store.DeleteProduct(ctx, p.ID); err != nil {
		return Result{}, err
	}

	res, err := emit(ctx, s.publisher, domain.AggregateProduct, p.ID, domain.ProductDeleted, p.Revision+1, struct{}{})
	if err != nil {
		return Result{}, err
	}

	s.followUpInventory(ctx, env, domain.CmdDeleteInventory, domain.DeleteInventoryData{ProductID: p.ID})
	return res, nil
}

// followUpInventory dispatches an inventory command spawned by a
// product command. The product change is already committed and
// published at this point, so a failing follow-up is logged rather than
// rolled back.
func (s *ProductService) followUpInventory(ctx context.Context, parent domain.CommandEnvelope, cmdType string, data any) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		s.logger.WithError(err).WithField("commandType", cmdType).Error("follow-up command marshal failed")
		return
	}
	if _, err := s.dispatcher.Dispatch(ctx, followUp(parent, cmdType, raw)); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"commandType": cmdType,
			"parentType":  parent.Command.Type,
		}).Error("follow-up command failed")
	}
}
