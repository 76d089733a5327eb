package command

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"marketplace/domain"
)

type SellerStore interface {
	GetSellerByEmail(ctx context.Context, email string) (*domain.Seller, error)
	InsertSeller(ctx context.Context, sl domain.Seller) error
}

type SellerService struct {
	store     SellerStore
	publisher EventPublisher
	now       func() time.Time
}

func NewSellerService(store SellerStore, pub EventPublisher) *SellerService {
	return &SellerService{store: store, publisher: pub, now: nowUTC}
}

func (s *SellerService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdRegisterSeller, s.RegisterSeller)
}

func (s *SellerService) RegisterSeller(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.RegisterSellerData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if strings.TrimSpace(data.Name) == "" {
		return Result{}, domain.Invalid("name", "must not be empty")
	}
	if !strings.Contains(data.Email, "@") {
		return Result{}, domain.Invalid("email", "malformed address")
	}
	if existing, err := s.store.GetSellerByEmail(ctx, data.Email); err != nil {
		return Result{}, err
	} else if existing != nil {
		return Result{}, domain.Invalid("email", "already registered")
	}

	sl := domain.Seller{
		ID:           uuid.NewString(),
		Name:         data.Name,
		Email:        data.Email,
		BusinessName: data.BusinessName,
		CreatedAt:    s.now(),
	}
	if err := s.store.InsertSeller(ctx, sl); err != nil {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateSeller, sl.ID, domain.SellerRegistered, 1, domain.SellerRegisteredData{
		Name:         sl.Name,
		Email:        sl.Email,
		BusinessName: sl.BusinessName,
	})
}
