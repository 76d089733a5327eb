package command

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"marketplace/domain"
)

type LocationStore interface {
	GetLocation(ctx context.Context, userID, locationID string) (*domain.UserLocation, error)
	InsertLocation(ctx context.Context, loc domain.UserLocation) error
	SetCurrentLocation(ctx context.Context, userID, locationID string) error
}

type LocationService struct {
	store     LocationStore
	publisher EventPublisher
	now       func() time.Time
}

func NewLocationService(store LocationStore, pub EventPublisher) *LocationService {
	return &LocationService{store: store, publisher: pub, now: nowUTC}
}

func (s *LocationService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdAddLocation, s.AddLocation)
	r.Register(domain.CmdSetCurrentLocation, s.SetCurrentLocation)
}

func (s *LocationService) AddLocation(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.AddLocationData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if env.ActorID == "" {
		return Result{}, domain.Invalid("actorId", "must not be empty")
	}
	if data.Latitude < -90 || data.Latitude > 90 {
		return Result{}, domain.Invalid("latitude", "out of range")
	}
	if data.Longitude < -180 || data.Longitude > 180 {
		return Result{}, domain.Invalid("longitude", "out of range")
	}

	loc := domain.UserLocation{
		ID:        uuid.NewString(),
		UserID:    env.ActorID,
		Alias:     data.Alias,
		Address:   data.Address,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		IsCurrent: data.IsCurrent,
		Revision:  1,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertLocation(ctx, loc); err != nil {
		return Result{}, err
	}
	if loc.IsCurrent {
		// Demote whatever was current before in the same partition.
		if err := s.store.SetCurrentLocation(ctx, loc.UserID, loc.ID); err != nil {
			return Result{}, err
		}
	}
	return emit(ctx, s.publisher, domain.AggregateUserLocation, loc.ID, domain.LocationAdded, loc.Revision, domain.LocationAddedData{
		UserID:    loc.UserID,
		Alias:     loc.Alias,
		Address:   loc.Address,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		IsCurrent: loc.IsCurrent,
	})
}

func (s *LocationService) SetCurrentLocation(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.SetCurrentLocationData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if env.ActorID == "" {
		return Result{}, domain.Invalid("actorId", "must not be empty")
	}
	if data.LocationID == "" {
		return Result{}, domain.Invalid("locationId", "must not be empty")
	}
	loc, err := s.store.GetLocation(ctx, env.ActorID, data.LocationID)
	if err != nil {
		return Result{}, err
	}
	if loc == nil {
		return Result{}, domain.ErrNotFound
	}
	if err := s.store.SetCurrentLocation(ctx, env.ActorID, data.LocationID); err != nil {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateUserLocation, loc.ID, domain.CurrentLocationSet, loc.Revision+1, domain.CurrentLocationSetData{
		UserID:     loc.UserID,
		LocationID: loc.ID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
	})
}
